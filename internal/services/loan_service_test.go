package services

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lendingdesk/lending-api/internal/apperr"
	"github.com/lendingdesk/lending-api/internal/cache"
	"github.com/lendingdesk/lending-api/internal/models"
)

func TestCreateLoan_InvalidTerms(t *testing.T) {
	db := newTestDB(t)
	eventSvc := NewEventService(db, nil)
	userSvc := NewUserService(db, eventSvc)
	accessSvc := NewAccessService(db)
	loanSvc := NewLoanService(db, userSvc, accessSvc, eventSvc, cache.NewMemoryCache())

	owner, err := userSvc.CreateUser("owner")
	if err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}

	cases := []struct {
		name string
		loan models.Loan
	}{
		{"negative amount", models.Loan{Amount: -5.0, Apr: 0.12, Term: 12, Status: "active", OwnerID: owner.ID}},
		{"zero apr", models.Loan{Amount: 1200.0, Apr: 0, Term: 12, Status: "active", OwnerID: owner.ID}},
		{"zero term", models.Loan{Amount: 1200.0, Apr: 0.12, Term: 0, Status: "active", OwnerID: owner.ID}},
		{"bad status", models.Loan{Amount: 1200.0, Apr: 0.12, Term: 12, Status: "paused", OwnerID: owner.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loanSvc.CreateLoan(tc.loan)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateLoan_UnknownOwner(t *testing.T) {
	db := newTestDB(t)
	eventSvc := NewEventService(db, nil)
	userSvc := NewUserService(db, eventSvc)
	accessSvc := NewAccessService(db)
	loanSvc := NewLoanService(db, userSvc, accessSvc, eventSvc, cache.NewMemoryCache())

	_, err := loanSvc.CreateLoan(models.Loan{Amount: 1200.0, Apr: 0.12, Term: 12, Status: "active", OwnerID: "no-such-user"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestUpdateLoan_OwnerOnly(t *testing.T) {
	userSvc, _, loanSvc, owner, loan := newLoanFixture(t)

	viewer, err := userSvc.CreateUser("viewer")
	if err != nil {
		t.Fatalf("failed to create viewer: %v", err)
	}
	if err := loanSvc.ShareLoan(loan.ID, owner.ID, viewer.ID); err != nil {
		t.Fatalf("share failed: %v", err)
	}

	update := models.LoanUpdate{Amount: 2400.0, Apr: 0.1, Term: 24, Status: models.LoanStatusActive}

	// A shared viewer can read but never mutate.
	if _, err := loanSvc.UpdateLoan(loan.ID, viewer.ID, update); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden error for viewer, got %v", err)
	}

	updated, err := loanSvc.UpdateLoan(loan.ID, owner.ID, update)
	if err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if updated.Amount != 2400.0 || updated.Apr != 0.1 || updated.Term != 24 {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.OwnerID != owner.ID || updated.ID != loan.ID {
		t.Errorf("update touched immutable fields: %+v", updated)
	}
}

func TestUpdateLoan_NotFound(t *testing.T) {
	_, _, loanSvc, owner, _ := newLoanFixture(t)

	update := models.LoanUpdate{Amount: 100.0, Apr: 0.1, Term: 6, Status: models.LoanStatusActive}
	_, err := loanSvc.UpdateLoan("no-such-loan", owner.ID, update)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGetSchedule_AccessControl(t *testing.T) {
	userSvc, _, loanSvc, owner, loan := newLoanFixture(t)

	stranger, err := userSvc.CreateUser("stranger")
	if err != nil {
		t.Fatalf("failed to create stranger: %v", err)
	}

	if _, err := loanSvc.GetSchedule(loan.ID, stranger.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden error, got %v", err)
	}

	schedule, err := loanSvc.GetSchedule(loan.ID, owner.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedule) != loan.Term {
		t.Fatalf("expected %d entries, got %d", loan.Term, len(schedule))
	}
	if schedule[0].OpenBalance != loan.Amount {
		t.Errorf("first open balance %v, want %v", schedule[0].OpenBalance, loan.Amount)
	}

	// After sharing, the grantee gets the same schedule.
	if err := loanSvc.ShareLoan(loan.ID, owner.ID, stranger.ID); err != nil {
		t.Fatalf("share failed: %v", err)
	}
	shared, err := loanSvc.GetSchedule(loan.ID, stranger.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shared) != len(schedule) {
		t.Errorf("shared schedule has %d entries, want %d", len(shared), len(schedule))
	}
}

func TestGetSchedule_CachesByTerms(t *testing.T) {
	db := newTestDB(t)
	eventSvc := NewEventService(db, nil)
	userSvc := NewUserService(db, eventSvc)
	accessSvc := NewAccessService(db)
	mem := cache.NewMemoryCache()
	loanSvc := NewLoanService(db, userSvc, accessSvc, eventSvc, mem)

	owner, err := userSvc.CreateUser("owner")
	if err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}
	loan, err := loanSvc.CreateLoan(models.Loan{Amount: 1200.0, Apr: 0.12, Term: 12, Status: "active", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("failed to create loan: %v", err)
	}

	if _, err := loanSvc.GetSchedule(loan.ID, owner.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mem.Get(scheduleCacheKey(loan)); !ok {
		t.Error("expected the schedule to be cached after the first read")
	}

	// Changing the terms moves the cache key, so the stale entry is skipped.
	updated, err := loanSvc.UpdateLoan(loan.ID, owner.ID, models.LoanUpdate{Amount: 2400.0, Apr: 0.12, Term: 12, Status: "active"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	schedule, err := loanSvc.GetSchedule(loan.ID, owner.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schedule[0].OpenBalance != updated.Amount {
		t.Errorf("schedule served stale terms: open balance %v, want %v", schedule[0].OpenBalance, updated.Amount)
	}
}

func TestGetSummary(t *testing.T) {
	_, _, loanSvc, owner, loan := newLoanFixture(t)

	summary, err := loanSvc.GetSummary(loan.ID, owner.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.CurrentPrincipal != loan.Amount {
		t.Errorf("month-0 principal %v, want %v", summary.CurrentPrincipal, loan.Amount)
	}

	summary, err = loanSvc.GetSummary(loan.ID, owner.ID, loan.Term)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(summary.CurrentPrincipal) > 1e-6 {
		t.Errorf("final principal %v, want ~0", summary.CurrentPrincipal)
	}

	if _, err := loanSvc.GetSummary(loan.ID, owner.ID, loan.Term+1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error past term, got %v", err)
	}
}

func TestShareLoan_Preconditions(t *testing.T) {
	userSvc, _, loanSvc, owner, loan := newLoanFixture(t)

	other, err := userSvc.CreateUser("other")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if err := loanSvc.ShareLoan("no-such-loan", owner.ID, other.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing loan, got %v", err)
	}
	if err := loanSvc.ShareLoan(loan.ID, owner.ID, "no-such-user"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing grantee, got %v", err)
	}
	if err := loanSvc.ShareLoan(loan.ID, other.ID, other.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for non-owner sharer, got %v", err)
	}
}

func TestExpireDueLoans(t *testing.T) {
	db := newTestDB(t)
	eventSvc := NewEventService(db, nil)
	userSvc := NewUserService(db, eventSvc)
	accessSvc := NewAccessService(db)
	loanSvc := NewLoanService(db, userSvc, accessSvc, eventSvc, cache.NewMemoryCache())

	owner, err := userSvc.CreateUser("owner")
	if err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	insert := func(id string, term int, createdAt time.Time) {
		_, err := db.Exec("INSERT INTO loans(id, amount, apr, term, status, owner_id, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)",
			id, 1200.0, 0.12, term, models.LoanStatusActive, owner.ID, createdAt)
		if err != nil {
			t.Fatalf("failed to insert loan: %v", err)
		}
	}
	insert("past-term", 12, now.AddDate(0, -13, 0))
	insert("mid-term", 12, now.AddDate(0, -3, 0))

	expired, err := loanSvc.ExpireDueLoans(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 1 {
		t.Errorf("expected 1 expired loan, got %d", expired)
	}

	past, err := loanSvc.GetLoanByID("past-term")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if past.Status != models.LoanStatusInactive {
		t.Errorf("expected past-term loan inactive, got %q", past.Status)
	}

	mid, err := loanSvc.GetLoanByID("mid-term")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mid.Status != models.LoanStatusActive {
		t.Errorf("expected mid-term loan active, got %q", mid.Status)
	}
}

func TestMonthsBetween(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want int
	}{
		{time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), 12},
		{time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tc := range cases {
		if got := monthsBetween(start, tc.end); got != tc.want {
			t.Errorf("monthsBetween(%v, %v) = %d, want %d", start, tc.end, got, tc.want)
		}
	}
}
