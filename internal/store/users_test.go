package store

import (
	"context"
	"errors"
	"testing"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Test User", "Test@Example.com", "hash123", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "test@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.Role != model.RoleUser {
		t.Errorf("expected role 'user', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Test User" {
		t.Errorf("expected name 'Test User', got %q", got.Name)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "A", "a@example.com", "hash", model.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := CreateUser(ctx, database, "B", "A@example.com", "hash", model.RoleUser)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for duplicate email, got %v", err)
	}
}

func TestCreateUserInvalidRole(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateUser(context.Background(), database, "A", "a@example.com", "hash", "owner")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "Alice", "alice@example.com", "hash", model.RoleAdmin)

	user, err := GetUserByEmail(ctx, database, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Name != "Alice" {
		t.Errorf("expected 'Alice', got %q", user.Name)
	}

	missing, err := GetUserByEmail(ctx, database, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListUsersByRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "a", "a@example.com", "hash", model.RoleUser)
	CreateUser(ctx, database, "b", "b@example.com", "hash", model.RoleManager)
	CreateUser(ctx, database, "c", "c@example.com", "hash", model.RoleAdmin)

	all, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 users, got %d", len(all))
	}

	staff, err := ListUsersByRole(ctx, database, model.RoleAdmin, model.RoleManager)
	if err != nil {
		t.Fatalf("ListUsersByRole: %v", err)
	}
	if len(staff) != 2 {
		t.Errorf("expected 2 staff users, got %d", len(staff))
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "deleteme", "del@example.com", "hash", model.RoleUser)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}

	if err := DeleteUser(ctx, database, user.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}

	// The email is free again.
	if _, err := CreateUser(ctx, database, "again", "del@example.com", "hash", model.RoleUser); err != nil {
		t.Errorf("expected email to be reusable after delete, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "pw@example.com", "oldhash", model.RoleUser)

	if err := UpdateUserPassword(ctx, database, user.ID, "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	updated, err := UpdateUser(ctx, database, user.ID, "Renamed", model.RoleManager)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.Name != "Renamed" || updated.Role != model.RoleManager {
		t.Errorf("unexpected user after update: %+v", updated)
	}
	if updated.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", updated.PasswordHash)
	}
}
