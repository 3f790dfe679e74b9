package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/model"
)

const categorySelect = `SELECT c.id, c.name, c.description, c.created_at,
       (SELECT COUNT(*) FROM items i WHERE i.category_id = c.id AND i.is_active = TRUE) AS item_count
FROM categories c`

// CreateCategory creates a new category. Names are unique ignoring case;
// the unique index decides, so a concurrent duplicate gets Conflict too.
func CreateCategory(ctx context.Context, db *sqlx.DB, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("name required")
	}

	id, err := insertID(ctx, db,
		`INSERT INTO categories (name, description) VALUES (?, ?)`, name, description,
	)
	if isUniqueViolation(err) {
		return nil, apperr.Conflictf("category %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return GetCategory(ctx, db, id)
}

// GetCategory returns a category by ID.
func GetCategory(ctx context.Context, db *sqlx.DB, id int64) (*model.Category, error) {
	c := &model.Category{}
	err := get(ctx, db, c, categorySelect+` WHERE c.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

func findCategoryByName(ctx context.Context, q sqlx.ExtContext, name string) (*model.Category, error) {
	c := &model.Category{}
	err := get(ctx, q, c, categorySelect+` WHERE lower(c.name) = lower(?)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *sqlx.DB) ([]model.Category, error) {
	var categories []model.Category
	if err := selectAll(ctx, db, &categories, categorySelect+` ORDER BY c.name`); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory renames or re-describes a category.
func UpdateCategory(ctx context.Context, db *sqlx.DB, id int64, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("name required")
	}

	res, err := exec(ctx, db,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`, name, description, id,
	)
	if isUniqueViolation(err) {
		return nil, apperr.Conflictf("category %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("updating category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFoundf("category %d not found", id)
	}
	return GetCategory(ctx, db, id)
}

// DeleteCategory removes a category that no active item uses. Inactive
// items keep their history but lose the category.
func DeleteCategory(ctx context.Context, db *sqlx.DB, id int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var active int
	if err := get(ctx, tx, &active,
		`SELECT COUNT(*) FROM items WHERE category_id = ? AND is_active = TRUE`, id,
	); err != nil {
		return fmt.Errorf("counting category items: %w", err)
	}
	if active > 0 {
		return apperr.Conflictf("cannot delete category: %d items still use it", active)
	}

	if _, err := exec(ctx, tx, `UPDATE items SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("detaching items: %w", err)
	}

	res, err := exec(ctx, tx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("category %d not found", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing category delete: %w", err)
	}
	return nil
}

// ensureCategory returns the ID of the named category, creating it if it
// does not exist yet.
func ensureCategory(ctx context.Context, tx *sqlx.Tx, name string) (int64, error) {
	c, err := findCategoryByName(ctx, tx, name)
	if err != nil {
		return 0, err
	}
	if c != nil {
		return c.ID, nil
	}
	id, err := insertID(ctx, tx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("creating category %q: %w", name, err)
	}
	return id, nil
}
