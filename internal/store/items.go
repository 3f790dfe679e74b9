package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/ledger"
	"github.com/gudangmitra/gudang/internal/model"
)

const itemSelect = `SELECT i.id, i.name, i.description, i.category_id, COALESCE(c.name, '') AS category,
       i.unit, i.quantity, i.min_quantity, i.status, i.is_active,
       (i.image IS NOT NULL) AS has_image, i.created_at, i.updated_at
FROM items i
LEFT JOIN categories c ON c.id = i.category_id`

// ItemInput holds the fields of a new item.
type ItemInput struct {
	Name        string
	Description string
	CategoryID  *int64
	Unit        string
	Quantity    int
	MinQuantity int
}

func (in *ItemInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Name == "" {
		return apperr.Validationf("name required")
	}
	if in.Quantity < 0 {
		return apperr.Validationf("quantity must not be negative")
	}
	if in.MinQuantity < 0 {
		return apperr.Validationf("min_quantity must not be negative")
	}
	if in.Unit == "" {
		in.Unit = model.DefaultUnit
	}
	return nil
}

// ItemUpdate holds the editable fields of an item. A nil Quantity leaves
// the on-hand count alone; otherwise it is the new absolute count.
type ItemUpdate struct {
	Name        string
	Description string
	CategoryID  *int64
	Unit        string
	MinQuantity int
	Quantity    *int
}

// ItemFilter narrows ListItems. Zero values match everything.
type ItemFilter struct {
	CategoryID int64
	Status     string
	Search     string
}

// CreateItem creates a new item with its status derived from the quantities.
func CreateItem(ctx context.Context, db *sqlx.DB, in ItemInput) (*model.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	if in.CategoryID != nil {
		c, err := GetCategory(ctx, db, *in.CategoryID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, apperr.Validationf("category %d not found", *in.CategoryID)
		}
	}

	id, err := insertItem(ctx, db, in)
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

func insertItem(ctx context.Context, q sqlx.ExtContext, in ItemInput) (int64, error) {
	id, err := insertID(ctx, q,
		`INSERT INTO items (name, description, category_id, unit, quantity, min_quantity, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.Description, in.CategoryID, in.Unit, in.Quantity, in.MinQuantity,
		string(ledger.StatusOf(in.Quantity, in.MinQuantity)),
	)
	if err != nil {
		return 0, fmt.Errorf("creating item: %w", err)
	}
	return id, nil
}

// GetItem returns an item by ID, including soft-deleted items.
func GetItem(ctx context.Context, db *sqlx.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q sqlx.ExtContext, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := get(ctx, q, item, itemSelect+` WHERE i.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns active items ordered by name.
func ListItems(ctx context.Context, db *sqlx.DB, f ItemFilter) ([]model.Item, error) {
	query := itemSelect + ` WHERE i.is_active = TRUE`
	var args []any

	if f.CategoryID > 0 {
		query += ` AND i.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		query += ` AND (LOWER(i.name) LIKE ? OR LOWER(i.description) LIKE ?)`
		pattern := "%" + strings.ToLower(s) + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY i.name, i.id`

	var items []model.Item
	if err := selectAll(ctx, db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// UpdateItem edits an item's metadata. A quantity change goes through the
// ledger, so status always follows quantity and min_quantity.
func UpdateItem(ctx context.Context, db *sqlx.DB, id int64, in ItemUpdate) (*model.Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Name == "" {
		return nil, apperr.Validationf("name required")
	}
	if in.MinQuantity < 0 {
		return nil, apperr.Validationf("min_quantity must not be negative")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return nil, apperr.Validationf("quantity must not be negative")
	}
	if in.Unit == "" {
		in.Unit = model.DefaultUnit
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := lockItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if row == nil || !row.IsActive {
		return nil, apperr.NotFoundf("item %d not found", id)
	}

	if in.CategoryID != nil {
		var n int
		if err := get(ctx, tx, &n, `SELECT COUNT(*) FROM categories WHERE id = ?`, *in.CategoryID); err != nil {
			return nil, fmt.Errorf("checking category: %w", err)
		}
		if n == 0 {
			return nil, apperr.Validationf("category %d not found", *in.CategoryID)
		}
	}

	delta := 0
	if in.Quantity != nil {
		delta = *in.Quantity - row.Quantity
	}
	next := ledger.Apply(row.Quantity, in.MinQuantity, delta)

	res, err := exec(ctx, tx,
		`UPDATE items SET name = ?, description = ?, category_id = ?, unit = ?,
		        min_quantity = ?, quantity = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity = ?`,
		in.Name, in.Description, in.CategoryID, in.Unit,
		in.MinQuantity, next.Quantity, string(next.Status),
		id, row.Quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, apperr.Conflictf("item %d changed concurrently", id)
	}

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}
	return item, nil
}

// DeleteItem soft-deletes an item. Items still named by a pending request or
// an open loan cannot be deleted.
func DeleteItem(ctx context.Context, db *sqlx.DB, id int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := lockItem(ctx, tx, id)
	if err != nil {
		return err
	}
	if row == nil || !row.IsActive {
		return apperr.NotFoundf("item %d not found", id)
	}

	var open []string
	for _, st := range model.OpenLoanStatuses() {
		open = append(open, string(st))
	}
	query, args, err := sqlx.In(
		`SELECT
		   (SELECT COUNT(*) FROM request_items ri JOIN requests r ON r.id = ri.request_id
		     WHERE ri.item_id = ? AND r.status = ?)
		 + (SELECT COUNT(*) FROM loan_items li JOIN loans l ON l.id = li.loan_id
		     WHERE li.item_id = ? AND l.status IN (?))`,
		id, string(model.RequestPending), id, open,
	)
	if err != nil {
		return fmt.Errorf("building item reference query: %w", err)
	}

	var refs int
	if err := get(ctx, tx, &refs, query, args...); err != nil {
		return fmt.Errorf("checking item references: %w", err)
	}
	if refs > 0 {
		return apperr.Conflictf("cannot delete item: referenced by %d open requests or loans", refs)
	}

	if _, err := exec(ctx, tx,
		`UPDATE items SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item delete: %w", err)
	}
	return nil
}

// SetItemImage stores an item's image data.
func SetItemImage(ctx context.Context, db *sqlx.DB, id int64, image []byte, mime string) error {
	res, err := exec(ctx, db,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND is_active = TRUE`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("item %d not found", id)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type. Data is nil when
// the item has no image.
func GetItemImage(ctx context.Context, db *sqlx.DB, id int64) ([]byte, string, error) {
	var row struct {
		Image []byte         `db:"image"`
		MIME  sql.NullString `db:"image_mime"`
	}
	err := get(ctx, db, &row, `SELECT image, image_mime FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return row.Image, row.MIME.String, nil
}
