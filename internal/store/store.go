// Package store holds the SQL for every entity. Functions take a *sqlx.DB
// (or run their own transaction on it) and return model types.
//
// Queries are written with ? placeholders and rebound for the driver, so the
// same code runs on SQLite and PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/gudangmitra/gudang/internal/db"
)

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// forUpdate returns the row-lock suffix for SELECTs inside a transaction.
// SQLite has no row locks; there the single pooled connection serializes writers.
func forUpdate(q sqlx.ExtContext) string {
	if db.IsPostgres(q) {
		return " FOR UPDATE"
	}
	return ""
}

// insertID runs an INSERT ... RETURNING id and returns the new id.
func insertID(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	if err := get(ctx, q, &id, query+" RETURNING id", args...); err != nil {
		return 0, err
	}
	return id, nil
}

// isUniqueViolation reports whether err is a unique index violation on
// either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
