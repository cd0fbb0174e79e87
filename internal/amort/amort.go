// Package amort implements the amortization engine: pure functions computing
// fixed monthly payments, interest/principal splits, full schedules and
// point-in-time summaries from (apr, principal, term). The engine holds no
// state and performs no I/O, so it is safe to call from any number of
// request-handling goroutines.
//
// Arithmetic is plain float64 with no rounding; callers needing currency
// display round at the presentation boundary. Apr and principal must be
// positive and term must be at least 1 — that is the caller's contract and
// is not re-validated here. Only Summarize checks its month bound.
package amort

import (
	"math"

	"github.com/lendingdesk/lending-api/internal/apperr"
	"github.com/lendingdesk/lending-api/internal/models"
)

// MonthlyPayment returns the fixed monthly payment for a loan using the
// standard annuity formula with monthly rate apr/12.
func MonthlyPayment(apr, principal float64, term int) float64 {
	growth := math.Pow(1+apr/12, float64(term))
	return principal * (apr / 12 * growth) / (growth - 1)
}

// MonthlyInterest returns one month of interest on the given balance.
func MonthlyInterest(apr, balance float64) float64 {
	return balance * apr / 12
}

// BuildSchedule returns the full amortization schedule, one entry per month
// from 1 to term. The payment is fixed once from the original principal;
// each month's interest is recomputed against the remaining balance and the
// rest of the payment retires principal. No rounding correction is applied
// to force the final close balance to exactly zero, so a small float drift
// remains on the last row.
func BuildSchedule(apr, principal float64, term int) []models.ScheduleEntry {
	payment := MonthlyPayment(apr, principal, term)
	schedule := make([]models.ScheduleEntry, 0, term)

	balance := principal
	for month := 1; month <= term; month++ {
		interest := MonthlyInterest(apr, balance)
		principalPortion := payment - interest

		open := balance
		balance -= principalPortion

		schedule = append(schedule, models.ScheduleEntry{
			Month:            month,
			OpenBalance:      open,
			TotalPayment:     payment,
			PrincipalPayment: principalPortion,
			InterestPayment:  interest,
			CloseBalance:     balance,
		})
	}
	return schedule
}

// Summarize returns the state of a loan after the first `month` payments.
// Month 0 is the initial state of the loan, month 1 is after the first
// payment. The schedule is recomputed on every call; callers who need
// repeated summaries for the same loan should cache the schedule themselves.
func Summarize(apr, principal float64, term, month int) (models.LoanSummary, error) {
	if month < 0 {
		return models.LoanSummary{}, apperr.New(apperr.ErrValidation, "Month must be greater than or equal to zero")
	}
	if month > term {
		return models.LoanSummary{}, apperr.New(apperr.ErrValidation, "Month must be less than or equal to the loan term")
	}

	summary := models.LoanSummary{CurrentPrincipal: principal}
	if month == 0 {
		return summary, nil
	}

	schedule := BuildSchedule(apr, principal, term)
	for i := 0; i < month; i++ {
		summary.AggregatePrincipalPaid += schedule[i].PrincipalPayment
		summary.AggregateInterestPaid += schedule[i].InterestPayment
	}
	summary.CurrentPrincipal = schedule[month-1].CloseBalance
	return summary, nil
}
