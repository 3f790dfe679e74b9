package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetJWTSecret returns the persisted JWT secret, generating and storing one
// on first use. Concurrent first calls all read back the same row.
func GetJWTSecret(ctx context.Context, db *sqlx.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	if _, err := exec(ctx, db,
		`INSERT INTO settings (name, value) VALUES ('jwt_secret', ?) ON CONFLICT (name) DO NOTHING`,
		hex.EncodeToString(buf),
	); err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	if err := get(ctx, db, &secret, `SELECT value FROM settings WHERE name = 'jwt_secret'`); err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	return secret, nil
}
