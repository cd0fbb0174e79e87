package services

import (
	"database/sql"

	"github.com/lendingdesk/lending-api/internal/database"
	"github.com/lendingdesk/lending-api/internal/models"
)

// AccessServiceProvider defines the interface for the access control gate.
type AccessServiceProvider interface {
	HasAccess(loanID, userID string) (bool, error)
	Grant(loanID, userID string) error
	GetVisibleLoans(userID string) ([]models.Loan, error)
}

// AccessService decides whether a user may view a loan and manages the
// view grants backing that decision. Grants are looked up fresh on every
// call; they can change between requests, so freshness wins over caching.
type AccessService struct {
	db *sql.DB
}

// NewAccessService creates a new AccessService.
func NewAccessService(db *sql.DB) *AccessService {
	return &AccessService{db: db}
}

// HasAccess reports whether a grant exists for exactly this (loan, user)
// pair. Owners hold a grant inserted at loan creation, so ownership never
// needs a separate check here.
func (s *AccessService) HasAccess(loanID, userID string) (bool, error) {
	var one int
	row := s.db.QueryRow("SELECT 1 FROM loan_access WHERE loan_id = ? AND user_id = ?", loanID, userID)
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Grant gives a user view access to a loan. Granting is idempotent: an
// existing grant is reported as success, and so is losing an insert race to
// a concurrent request for the same pair, which the primary key on
// (loan_id, user_id) turns into a unique violation.
func (s *AccessService) Grant(loanID, userID string) error {
	exists, err := s.HasAccess(loanID, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.db.Exec("INSERT INTO loan_access(loan_id, user_id) VALUES(?, ?)", loanID, userID)
	if database.IsUniqueViolation(err) {
		return nil
	}
	return err
}

// GetVisibleLoans retrieves every loan a user may view, owned and shared
// alike. The grant table already contains the owner's implicit grant, so a
// single join covers both without duplicates.
func (s *AccessService) GetVisibleLoans(userID string) ([]models.Loan, error) {
	rows, err := s.db.Query(`
		SELECT l.id, l.amount, l.apr, l.term, l.status, l.owner_id, l.created_at
		FROM loans l
		JOIN loan_access a ON a.loan_id = l.id
		WHERE a.user_id = ?
		ORDER BY l.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLoans(rows)
}
