package models

import "time"

// Event represents a loggable action in the system.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g. "loan.create", "loan.share"
	Level     string    `json:"level"` // e.g. "info", "warn"
	Message   string    `json:"message"`
	LoanID    *string   `json:"loan_id,omitempty"` // Nullable for user-level events
	CreatedAt time.Time `json:"created_at"`
}
