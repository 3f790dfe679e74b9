package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration is one schema version. Each dialect lists its own statements;
// the two must describe the same tables and columns.
type migration struct {
	version  int
	name     string
	sqlite   []string
	postgres []string
}

// migrations are applied in order. Append new versions at the end; never
// edit one that has shipped.
var migrations = []migration{
	{
		version: 1,
		name:    "users and settings",
		sqlite: []string{
			`CREATE TABLE users (
			    id            INTEGER PRIMARY KEY,
			    name          TEXT NOT NULL,
			    email         TEXT NOT NULL,
			    password_hash TEXT NOT NULL,
			    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
			    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    deleted_at    DATETIME
			)`,
			`CREATE UNIQUE INDEX idx_users_email_active ON users(email) WHERE deleted_at IS NULL`,
			`CREATE TABLE settings (
			    name  TEXT PRIMARY KEY,
			    value TEXT NOT NULL
			)`,
			`CREATE TABLE revoked_tokens (
			    jti        TEXT PRIMARY KEY,
			    expires_at DATETIME NOT NULL
			)`,
		},
		postgres: []string{
			`CREATE TABLE users (
			    id            BIGSERIAL PRIMARY KEY,
			    name          TEXT NOT NULL,
			    email         TEXT NOT NULL,
			    password_hash TEXT NOT NULL,
			    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
			    created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    deleted_at    TIMESTAMPTZ
			)`,
			`CREATE UNIQUE INDEX idx_users_email_active ON users(email) WHERE deleted_at IS NULL`,
			`CREATE TABLE settings (
			    name  TEXT PRIMARY KEY,
			    value TEXT NOT NULL
			)`,
			`CREATE TABLE revoked_tokens (
			    jti        TEXT PRIMARY KEY,
			    expires_at TIMESTAMPTZ NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "categories and items",
		sqlite: []string{
			`CREATE TABLE categories (
			    id          INTEGER PRIMARY KEY,
			    name        TEXT NOT NULL,
			    description TEXT NOT NULL DEFAULT '',
			    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX idx_categories_name ON categories(lower(name))`,
			`CREATE TABLE items (
			    id           INTEGER PRIMARY KEY,
			    name         TEXT NOT NULL,
			    description  TEXT NOT NULL DEFAULT '',
			    category_id  INTEGER REFERENCES categories(id),
			    unit         TEXT NOT NULL DEFAULT 'pcs',
			    quantity     INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			    min_quantity INTEGER NOT NULL DEFAULT 0 CHECK (min_quantity >= 0),
			    status       TEXT NOT NULL DEFAULT 'out-of-stock' CHECK (status IN ('in-stock', 'low-stock', 'out-of-stock')),
			    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			    image        BLOB,
			    image_mime   TEXT,
			    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_items_category ON items(category_id)`,
		},
		postgres: []string{
			`CREATE TABLE categories (
			    id          BIGSERIAL PRIMARY KEY,
			    name        TEXT NOT NULL,
			    description TEXT NOT NULL DEFAULT '',
			    created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX idx_categories_name ON categories(lower(name))`,
			`CREATE TABLE items (
			    id           BIGSERIAL PRIMARY KEY,
			    name         TEXT NOT NULL,
			    description  TEXT NOT NULL DEFAULT '',
			    category_id  BIGINT REFERENCES categories(id),
			    unit         TEXT NOT NULL DEFAULT 'pcs',
			    quantity     INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			    min_quantity INTEGER NOT NULL DEFAULT 0 CHECK (min_quantity >= 0),
			    status       TEXT NOT NULL DEFAULT 'out-of-stock' CHECK (status IN ('in-stock', 'low-stock', 'out-of-stock')),
			    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			    image        BYTEA,
			    image_mime   TEXT,
			    created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_items_category ON items(category_id)`,
		},
	},
	{
		version: 3,
		name:    "requests, loans and notifications",
		sqlite: []string{
			`CREATE TABLE requests (
			    id           TEXT PRIMARY KEY,
			    requester_id INTEGER NOT NULL REFERENCES users(id),
			    reason       TEXT NOT NULL DEFAULT '',
			    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'denied', 'fulfilled', 'out_of_stock')),
			    decided_by   INTEGER REFERENCES users(id),
			    decided_at   DATETIME,
			    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_requests_requester ON requests(requester_id)`,
			`CREATE TABLE request_items (
			    request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			    item_id    INTEGER NOT NULL REFERENCES items(id),
			    quantity   INTEGER NOT NULL CHECK (quantity > 0),
			    PRIMARY KEY (request_id, item_id)
			)`,
			`CREATE INDEX idx_request_items_item ON request_items(item_id)`,
			`CREATE TABLE loans (
			    id          TEXT PRIMARY KEY,
			    borrower_id INTEGER NOT NULL REFERENCES users(id),
			    purpose     TEXT NOT NULL DEFAULT '',
			    status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'rejected', 'returned', 'overdue', 'cancelled')),
			    start_date  DATETIME NOT NULL,
			    end_date    DATETIME NOT NULL,
			    approved_by INTEGER REFERENCES users(id),
			    approved_at DATETIME,
			    returned_at DATETIME,
			    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_loans_borrower ON loans(borrower_id)`,
			`CREATE INDEX idx_loans_status ON loans(status)`,
			`CREATE TABLE loan_items (
			    loan_id  TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
			    item_id  INTEGER NOT NULL REFERENCES items(id),
			    quantity INTEGER NOT NULL CHECK (quantity > 0),
			    PRIMARY KEY (loan_id, item_id)
			)`,
			`CREATE INDEX idx_loan_items_item ON loan_items(item_id)`,
			`CREATE TABLE notifications (
			    id         INTEGER PRIMARY KEY,
			    user_id    INTEGER NOT NULL REFERENCES users(id),
			    type       TEXT NOT NULL,
			    message    TEXT NOT NULL,
			    related_id TEXT NOT NULL DEFAULT '',
			    is_read    BOOLEAN NOT NULL DEFAULT FALSE,
			    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_notifications_user ON notifications(user_id, is_read)`,
		},
		postgres: []string{
			`CREATE TABLE requests (
			    id           TEXT PRIMARY KEY,
			    requester_id BIGINT NOT NULL REFERENCES users(id),
			    reason       TEXT NOT NULL DEFAULT '',
			    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'denied', 'fulfilled', 'out_of_stock')),
			    decided_by   BIGINT REFERENCES users(id),
			    decided_at   TIMESTAMPTZ,
			    created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_requests_requester ON requests(requester_id)`,
			`CREATE TABLE request_items (
			    request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			    item_id    BIGINT NOT NULL REFERENCES items(id),
			    quantity   INTEGER NOT NULL CHECK (quantity > 0),
			    PRIMARY KEY (request_id, item_id)
			)`,
			`CREATE INDEX idx_request_items_item ON request_items(item_id)`,
			`CREATE TABLE loans (
			    id          TEXT PRIMARY KEY,
			    borrower_id BIGINT NOT NULL REFERENCES users(id),
			    purpose     TEXT NOT NULL DEFAULT '',
			    status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'rejected', 'returned', 'overdue', 'cancelled')),
			    start_date  TIMESTAMPTZ NOT NULL,
			    end_date    TIMESTAMPTZ NOT NULL,
			    approved_by BIGINT REFERENCES users(id),
			    approved_at TIMESTAMPTZ,
			    returned_at TIMESTAMPTZ,
			    created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			    updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_loans_borrower ON loans(borrower_id)`,
			`CREATE INDEX idx_loans_status ON loans(status)`,
			`CREATE TABLE loan_items (
			    loan_id  TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
			    item_id  BIGINT NOT NULL REFERENCES items(id),
			    quantity INTEGER NOT NULL CHECK (quantity > 0),
			    PRIMARY KEY (loan_id, item_id)
			)`,
			`CREATE INDEX idx_loan_items_item ON loan_items(item_id)`,
			`CREATE TABLE notifications (
			    id         BIGSERIAL PRIMARY KEY,
			    user_id    BIGINT NOT NULL REFERENCES users(id),
			    type       TEXT NOT NULL,
			    message    TEXT NOT NULL,
			    related_id TEXT NOT NULL DEFAULT '',
			    is_read    BOOLEAN NOT NULL DEFAULT FALSE,
			    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_notifications_user ON notifications(user_id, is_read)`,
		},
	},
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migrate applies every migration not yet recorded in schema_migrations.
// Each version runs in its own transaction.
func Migrate(db *sqlx.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("running migration %d (%s): %w", m.version, m.name, err)
		}
	}

	return nil
}

func apply(ctx context.Context, db *sqlx.DB, m migration) error {
	stmts := m.sqlite
	if IsPostgres(db) {
		stmts = m.postgres
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`),
		m.version, m.name,
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}

	return tx.Commit()
}

// Version returns the highest applied schema version, or 0 for an empty database.
func Version(db *sqlx.DB) (int, error) {
	var v int
	err := db.Get(&v, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
