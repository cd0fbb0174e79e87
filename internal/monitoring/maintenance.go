// Package monitoring hosts the background loan maintenance job.
package monitoring

import (
	"time"

	"github.com/lendingdesk/lending-api/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Maintenance periodically deactivates loans whose full term has elapsed
// since creation.
type Maintenance struct {
	loanSvc  services.LoanServiceProvider
	schedule cron.Schedule
	done     chan bool
}

// NewMaintenance creates a maintenance job from a standard cron expression.
func NewMaintenance(loanSvc services.LoanServiceProvider, cronExpr string) (*Maintenance, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Maintenance{
		loanSvc:  loanSvc,
		schedule: schedule,
		done:     make(chan bool),
	}, nil
}

// Run starts the maintenance loop. It runs once immediately on start, then
// on every tick of the configured schedule.
func (m *Maintenance) Run() {
	log.Info().Msg("Starting loan maintenance job")
	m.expire()

	next := m.schedule.Next(time.Now())
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-m.done:
			timer.Stop()
			log.Info().Msg("Stopping loan maintenance job")
			return
		case now := <-timer.C:
			m.expire()
			next = m.schedule.Next(now)
		}
	}
}

// Stop halts the maintenance loop.
func (m *Maintenance) Stop() {
	m.done <- true
}

func (m *Maintenance) expire() {
	expired, err := m.loanSvc.ExpireDueLoans(time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Loan expiry pass failed")
		return
	}
	if expired > 0 {
		log.Info().Int("expired", expired).Msg("Deactivated loans past their term")
	}
}
