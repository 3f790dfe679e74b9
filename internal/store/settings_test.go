package store

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/gudangmitra/gudang/internal/db"
)

func TestGetJWTSecret(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if raw, err := hex.DecodeString(first); err != nil || len(raw) != 32 {
		t.Fatalf("expected 32 random bytes hex-encoded, got %q", first)
	}

	for i := 0; i < 3; i++ {
		again, err := GetJWTSecret(ctx, database)
		if err != nil {
			t.Fatalf("GetJWTSecret: %v", err)
		}
		if again != first {
			t.Fatalf("secret changed between calls: %q != %q", first, again)
		}
	}
}
