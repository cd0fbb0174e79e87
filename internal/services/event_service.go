package services

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lendingdesk/lending-api/internal/models"
	"github.com/lendingdesk/lending-api/internal/websocket"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for audit event services.
type EventServiceProvider interface {
	Record(eventType, level, message string, loanID *string)
	GetRecentEvents(limit int) ([]models.Event, error)
}

// EventService persists audit events and mirrors them to connected
// websocket clients.
type EventService struct {
	db  *sql.DB
	hub *websocket.Hub // may be nil when no stream is wired (tests)
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, hub *websocket.Hub) *EventService {
	return &EventService{db: db, hub: hub}
}

// Record logs a new event. Recording is best-effort: a failure to persist
// or broadcast is logged but never fails the operation being audited.
func (s *EventService) Record(eventType, level, message string, loanID *string) {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		LoanID:    loanID,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.db.Exec("INSERT INTO events (id, type, level, message, loan_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.LoanID, event.CreatedAt); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to persist event")
		return
	}

	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(websocket.Message{Action: "event", Payload: event})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to encode event for broadcast")
		return
	}
	s.hub.Publish(payload)
}

// GetRecentEvents retrieves the most recent events.
func (s *EventService) GetRecentEvents(limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, loan_id, created_at FROM events ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.LoanID, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
