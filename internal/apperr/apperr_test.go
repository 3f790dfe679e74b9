package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFoundf("request %s not found", "abc")
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected NotFound error to match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("NotFound error should not match ErrConflict")
	}

	wrapped := fmt.Errorf("approving: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped error to match ErrNotFound")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Validationf("name required"), Validation},
		{InvalidTransitionf("denied -> approved"), InvalidTransition},
		{AlreadyReturnedf("loan already returned"), AlreadyReturned},
		{fmt.Errorf("tx: %w", Conflictf("insufficient stock")), Conflict},
		{Forbiddenf("not your loan"), Forbidden},
		{errors.New("disk full"), Persistence},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(fmt.Errorf("x: %w", Validationf("quantity must be positive"))); got != "quantity must be positive" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Message(errors.New("boom")); got != "" {
		t.Errorf("expected empty message for plain error, got %q", got)
	}
}
