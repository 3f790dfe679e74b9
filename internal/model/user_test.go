package model

import (
	"strings"
	"testing"
)

func TestRoleAtLeast(t *testing.T) {
	// Ordered from least to most privileged.
	ladder := []string{RoleUser, RoleManager, RoleAdmin}
	for i, role := range ladder {
		for j, minimum := range ladder {
			if got, want := RoleAtLeast(role, minimum), i >= j; got != want {
				t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", role, minimum, got, want)
			}
		}
	}

	for _, pair := range [][2]string{{"warehouse", RoleUser}, {RoleAdmin, "owner"}, {"", ""}} {
		if RoleAtLeast(pair[0], pair[1]) {
			t.Errorf("expected unknown roles %q/%q to be refused", pair[0], pair[1])
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleManager, RoleUser} {
		if !ValidRole(role) {
			t.Errorf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"", "Admin", "staff"} {
		if ValidRole(role) {
			t.Errorf("expected %q to be invalid", role)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	short := strings.Repeat("x", MinPasswordLength-1)
	if err := ValidatePassword(short); err == nil {
		t.Errorf("expected %d characters to be rejected", len(short))
	}
	if err := ValidatePassword(short + "x"); err != nil {
		t.Errorf("expected %d characters to be accepted: %v", MinPasswordLength, err)
	}
	if err := ValidatePassword(""); err == nil {
		t.Error("expected empty password to be rejected")
	}
}
