package models

// ScheduleEntry is one month of an amortization schedule. Entries are
// derived from a loan's terms and never persisted.
type ScheduleEntry struct {
	Month            int     `json:"month"`
	OpenBalance      float64 `json:"open_balance"`
	TotalPayment     float64 `json:"total_payment"`
	PrincipalPayment float64 `json:"principal_payment"`
	InterestPayment  float64 `json:"interest_payment"`
	CloseBalance     float64 `json:"close_balance"`
}

// LoanSummary is the point-in-time state of a loan after a given number of
// monthly payments. Month 0 is the pre-payment state.
type LoanSummary struct {
	CurrentPrincipal       float64 `json:"current_principal"`
	AggregatePrincipalPaid float64 `json:"aggregate_principal_paid"`
	AggregateInterestPaid  float64 `json:"aggregate_interest_paid"`
}
