package models

import "time"

// Loan statuses.
const (
	LoanStatusActive   = "active"
	LoanStatusInactive = "inactive"
)

// Loan represents a fixed-payment monthly loan. Apr is a decimal fraction
// (0.12 = 12%), Term is the duration in whole months. OwnerID is set at
// creation and never changes.
type Loan struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Apr       float64   `json:"apr"`
	Term      int       `json:"term"`
	Status    string    `json:"status"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LoanUpdate carries the mutable fields of a loan. Updates merge exactly
// these four fields; id and owner_id are never touched.
type LoanUpdate struct {
	Amount float64 `json:"amount"`
	Apr    float64 `json:"apr"`
	Term   int     `json:"term"`
	Status string  `json:"status"`
}

// Apply merges the update into the loan.
func (u LoanUpdate) Apply(loan *Loan) {
	loan.Amount = u.Amount
	loan.Apr = u.Apr
	loan.Term = u.Term
	loan.Status = u.Status
}
