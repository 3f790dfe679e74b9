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

const userSelect = `SELECT id, name, email, password_hash, role, created_at, deleted_at FROM users`

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates a new user. Emails are unique among active users.
func CreateUser(ctx context.Context, db *sqlx.DB, name, email, passwordHash, role string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return nil, apperr.Validationf("name and email required")
	}
	if !model.ValidRole(role) {
		return nil, apperr.Validationf("invalid role %q", role)
	}

	existing, err := GetUserByEmail(ctx, db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.DeletedAt == nil {
		return nil, apperr.Conflictf("email %s already in use", email)
	}

	id, err := insertID(ctx, db,
		`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		name, email, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, apperr.Conflictf("email %s already in use", email)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, including soft-deleted users.
func GetUser(ctx context.Context, db *sqlx.DB, id int64) (*model.User, error) {
	u := &model.User{}
	err := get(ctx, db, u, userSelect+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the active user with the given email, or the most
// recently deleted one if no active user has it.
func GetUserByEmail(ctx context.Context, db *sqlx.DB, email string) (*model.User, error) {
	u := &model.User{}
	err := get(ctx, db, u,
		userSelect+` WHERE email = ? ORDER BY deleted_at IS NULL DESC, id DESC LIMIT 1`,
		NormalizeEmail(email),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sqlx.DB) ([]model.User, error) {
	var users []model.User
	if err := selectAll(ctx, db, &users, userSelect+` WHERE deleted_at IS NULL ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// ListUsersByRole returns the non-deleted users holding any of roles.
func ListUsersByRole(ctx context.Context, db *sqlx.DB, roles ...string) ([]model.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(userSelect+` WHERE deleted_at IS NULL AND role IN (?) ORDER BY id`, roles)
	if err != nil {
		return nil, fmt.Errorf("building role query: %w", err)
	}
	var users []model.User
	if err := selectAll(ctx, db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("listing users by role: %w", err)
	}
	return users, nil
}

// UpdateUser changes a user's name and role.
func UpdateUser(ctx context.Context, db *sqlx.DB, id int64, name, role string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("name required")
	}
	if !model.ValidRole(role) {
		return nil, apperr.Validationf("invalid role %q", role)
	}

	res, err := exec(ctx, db,
		`UPDATE users SET name = ?, role = ? WHERE id = ? AND deleted_at IS NULL`,
		name, role, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFoundf("user %d not found", id)
	}
	return GetUser(ctx, db, id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sqlx.DB, id int64, passwordHash string) error {
	res, err := exec(ctx, db,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("user %d not found", id)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := exec(ctx, db,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("user %d not found", id)
	}
	return nil
}

// activeUser loads a non-deleted user inside tx.
func activeUser(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error) {
	u := &model.User{}
	err := get(ctx, tx, u, userSelect+` WHERE id = ? AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}
