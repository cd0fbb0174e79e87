package services

import (
	"errors"
	"testing"

	"github.com/lendingdesk/lending-api/internal/apperr"
)

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, NewEventService(db, nil))

	user, err := svc.CreateUser("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID == "" {
		t.Error("expected a generated id")
	}
	if user.Username != "alice" {
		t.Errorf("expected username alice, got %q", user.Username)
	}

	found, err := svc.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("lookup returned id %q, want %q", found.ID, user.ID)
	}
}

func TestCreateUser_ShortUsername(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, NewEventService(db, nil))

	_, err := svc.CreateUser("ab")
	if !errors.Is(err, apperr.ErrUnprocessable) {
		t.Errorf("expected unprocessable error, got %v", err)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, NewEventService(db, nil))

	if _, err := svc.CreateUser("alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.CreateUser("alice")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, NewEventService(db, nil))

	_, err := svc.GetUserByID("no-such-id")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestListUsers_Pagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, NewEventService(db, nil))

	for _, name := range []string{"alice", "bob", "carol"} {
		if _, err := svc.CreateUser(name); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	users, err := svc.ListUsers(1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}
}
