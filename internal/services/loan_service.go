package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lendingdesk/lending-api/internal/amort"
	"github.com/lendingdesk/lending-api/internal/apperr"
	"github.com/lendingdesk/lending-api/internal/cache"
	"github.com/lendingdesk/lending-api/internal/models"
	"github.com/rs/zerolog/log"
)

// LoanServiceProvider defines the interface for loan services.
type LoanServiceProvider interface {
	CreateLoan(loan models.Loan) (models.Loan, error)
	GetLoanByID(id string) (models.Loan, error)
	ListLoansByOwner(ownerID string, skip, limit int) ([]models.Loan, error)
	UpdateLoan(loanID, actorID string, update models.LoanUpdate) (models.Loan, error)
	GetSchedule(loanID, userID string) ([]models.ScheduleEntry, error)
	GetSummary(loanID, userID string, month int) (models.LoanSummary, error)
	ShareLoan(loanID, ownerID, granteeID string) error
	ExpireDueLoans(now time.Time) (int, error)
}

// LoanService provides business logic for loan management.
type LoanService struct {
	db            *sql.DB
	userSvc       UserServiceProvider
	accessSvc     AccessServiceProvider
	eventSvc      EventServiceProvider
	scheduleCache cache.ScheduleCache
}

// NewLoanService creates a new LoanService.
func NewLoanService(db *sql.DB, userSvc UserServiceProvider, accessSvc AccessServiceProvider, eventSvc EventServiceProvider, scheduleCache cache.ScheduleCache) *LoanService {
	return &LoanService{
		db:            db,
		userSvc:       userSvc,
		accessSvc:     accessSvc,
		eventSvc:      eventSvc,
		scheduleCache: scheduleCache,
	}
}

// validateLoanTerms checks the mutable loan fields shared by create and
// update.
func validateLoanTerms(amount, apr float64, term int, status string) error {
	if amount <= 0 {
		return apperr.New(apperr.ErrValidation, "Loan amount must be greater than zero")
	}
	if apr <= 0 {
		return apperr.New(apperr.ErrValidation, "Loan interest_rate must be greater than zero")
	}
	if term <= 0 {
		return apperr.New(apperr.ErrValidation, "Loan term must be greater than zero")
	}
	if status != models.LoanStatusActive && status != models.LoanStatusInactive {
		return apperr.New(apperr.ErrValidation, "Loan status must be either 'active' or 'inactive'")
	}
	return nil
}

// CreateLoan validates and persists a new loan, granting the owner view
// access as part of creation. The owner must be an existing user.
func (s *LoanService) CreateLoan(loan models.Loan) (models.Loan, error) {
	if loan.Status == "" {
		loan.Status = models.LoanStatusActive
	}
	if err := validateLoanTerms(loan.Amount, loan.Apr, loan.Term, loan.Status); err != nil {
		return models.Loan{}, err
	}
	if _, err := s.userSvc.GetUserByID(loan.OwnerID); err != nil {
		return models.Loan{}, err
	}

	loan.ID = uuid.New().String()
	loan.CreatedAt = time.Now().UTC()

	stmt, err := s.db.Prepare("INSERT INTO loans(id, amount, apr, term, status, owner_id, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.Loan{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(loan.ID, loan.Amount, loan.Apr, loan.Term, loan.Status, loan.OwnerID, loan.CreatedAt); err != nil {
		return models.Loan{}, err
	}

	// The owner's grant is inserted here rather than assumed; the store does
	// not enforce it.
	if err := s.accessSvc.Grant(loan.ID, loan.OwnerID); err != nil {
		return models.Loan{}, err
	}

	s.eventSvc.Record("loan.create", "info", fmt.Sprintf("Loan created with principal %.2f over %d months.", loan.Amount, loan.Term), &loan.ID)
	return s.GetLoanByID(loan.ID)
}

// GetLoanByID retrieves a single loan by its ID.
func (s *LoanService) GetLoanByID(id string) (models.Loan, error) {
	var loan models.Loan
	row := s.db.QueryRow("SELECT id, amount, apr, term, status, owner_id, created_at FROM loans WHERE id = ?", id)
	err := row.Scan(&loan.ID, &loan.Amount, &loan.Apr, &loan.Term, &loan.Status, &loan.OwnerID, &loan.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Loan{}, apperr.Newf(apperr.ErrNotFound, "Loan %s not found", id)
		}
		return models.Loan{}, err
	}
	return loan, nil
}

// ListLoansByOwner retrieves the loans owned by a user.
func (s *LoanService) ListLoansByOwner(ownerID string, skip, limit int) ([]models.Loan, error) {
	if _, err := s.userSvc.GetUserByID(ownerID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		"SELECT id, amount, apr, term, status, owner_id, created_at FROM loans WHERE owner_id = ? ORDER BY created_at LIMIT ? OFFSET ?",
		ownerID, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLoans(rows)
}

// UpdateLoan merges the mutable fields into an existing loan. Only the
// owner may update; holding a view grant is not enough.
func (s *LoanService) UpdateLoan(loanID, actorID string, update models.LoanUpdate) (models.Loan, error) {
	if err := validateLoanTerms(update.Amount, update.Apr, update.Term, update.Status); err != nil {
		return models.Loan{}, err
	}

	loan, err := s.GetLoanByID(loanID)
	if err != nil {
		return models.Loan{}, err
	}
	if actorID != loan.OwnerID {
		return models.Loan{}, apperr.Newf(apperr.ErrForbidden, "User %s does not have access to update loan %s", actorID, loanID)
	}

	update.Apply(&loan)

	stmt, err := s.db.Prepare("UPDATE loans SET amount = ?, apr = ?, term = ?, status = ? WHERE id = ?")
	if err != nil {
		return models.Loan{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(loan.Amount, loan.Apr, loan.Term, loan.Status, loanID); err != nil {
		return models.Loan{}, err
	}

	s.eventSvc.Record("loan.update", "info", fmt.Sprintf("Loan terms updated to principal %.2f over %d months.", loan.Amount, loan.Term), &loanID)
	return s.GetLoanByID(loanID)
}

// GetSchedule returns the full amortization schedule for a loan the user
// may view. Computed schedules are cached keyed by the loan's terms, so an
// update naturally misses the stale entry.
func (s *LoanService) GetSchedule(loanID, userID string) ([]models.ScheduleEntry, error) {
	loan, err := s.authorizeRead(loanID, userID)
	if err != nil {
		return nil, err
	}

	key := scheduleCacheKey(loan)
	if cached, ok := s.scheduleCache.Get(key); ok {
		var schedule []models.ScheduleEntry
		if err := json.Unmarshal([]byte(cached), &schedule); err == nil {
			return schedule, nil
		}
		log.Warn().Str("loan_id", loanID).Msg("Discarding undecodable cached schedule")
	}

	schedule := amort.BuildSchedule(loan.Apr, loan.Amount, loan.Term)

	if encoded, err := json.Marshal(schedule); err == nil {
		if err := s.scheduleCache.Set(key, string(encoded)); err != nil {
			log.Warn().Err(err).Str("loan_id", loanID).Msg("Failed to cache schedule")
		}
	}
	return schedule, nil
}

// GetSummary returns the point-in-time summary of a loan the user may view.
func (s *LoanService) GetSummary(loanID, userID string, month int) (models.LoanSummary, error) {
	loan, err := s.authorizeRead(loanID, userID)
	if err != nil {
		return models.LoanSummary{}, err
	}
	return amort.Summarize(loan.Apr, loan.Amount, loan.Term, month)
}

// ShareLoan grants a user view access to a loan. The actor must be the
// loan's owner and the grantee must exist. Re-sharing an already shared
// loan succeeds without effect.
func (s *LoanService) ShareLoan(loanID, ownerID, granteeID string) error {
	loan, err := s.GetLoanByID(loanID)
	if err != nil {
		return err
	}
	if _, err := s.userSvc.GetUserByID(granteeID); err != nil {
		return err
	}
	if loan.OwnerID != ownerID {
		return apperr.Newf(apperr.ErrForbidden, "User %s does not own loan %s", ownerID, loanID)
	}

	if err := s.accessSvc.Grant(loanID, granteeID); err != nil {
		return err
	}

	s.eventSvc.Record("loan.share", "info", fmt.Sprintf("Loan shared with user %s.", granteeID), &loanID)
	return nil
}

// ExpireDueLoans marks active loans inactive once their full term has
// elapsed since creation. Returns the number of loans expired.
func (s *LoanService) ExpireDueLoans(now time.Time) (int, error) {
	rows, err := s.db.Query("SELECT id, amount, apr, term, status, owner_id, created_at FROM loans WHERE status = ?", models.LoanStatusActive)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	loans, err := scanLoans(rows)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, loan := range loans {
		if monthsBetween(loan.CreatedAt, now) < loan.Term {
			continue
		}
		if _, err := s.db.Exec("UPDATE loans SET status = ? WHERE id = ?", models.LoanStatusInactive, loan.ID); err != nil {
			return expired, err
		}
		id := loan.ID
		s.eventSvc.Record("loan.expire", "info", fmt.Sprintf("Loan reached the end of its %d month term and was deactivated.", loan.Term), &id)
		expired++
	}
	return expired, nil
}

// authorizeRead fetches a loan after checking the user holds a view grant.
// The grant check runs first so an unauthorized caller learns nothing about
// whether the loan exists beyond its id having no grant.
func (s *LoanService) authorizeRead(loanID, userID string) (models.Loan, error) {
	ok, err := s.accessSvc.HasAccess(loanID, userID)
	if err != nil {
		return models.Loan{}, err
	}
	if !ok {
		return models.Loan{}, apperr.Newf(apperr.ErrForbidden, "User %s does not have access to loan %s", userID, loanID)
	}
	return s.GetLoanByID(loanID)
}

func scheduleCacheKey(loan models.Loan) string {
	return fmt.Sprintf("schedule:%s:%v:%v:%d", loan.ID, loan.Amount, loan.Apr, loan.Term)
}

// monthsBetween returns the number of whole calendar months from start to
// end.
func monthsBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	months := int(end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// scanLoans is a helper to scan query rows into a slice of Loans.
func scanLoans(rows *sql.Rows) ([]models.Loan, error) {
	var loans []models.Loan
	for rows.Next() {
		var loan models.Loan
		if err := rows.Scan(&loan.ID, &loan.Amount, &loan.Apr, &loan.Term, &loan.Status, &loan.OwnerID, &loan.CreatedAt); err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}
