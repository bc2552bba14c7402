package events

import (
	"time"

	"github.com/spec-kit/display-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// ActorType identifies who triggered an event.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorStaff    ActorType = "staff"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    ActorType `json:"type"`
	StaffID *string   `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber   string          `json:"ticket_number"`
	Category       domain.Category `json:"category"`
	ShippingOption string          `json:"shipping_option"`
	Attempts       int             `json:"attempts"`
}

// TicketStatusChangedPayload payload. HistoryLength counts entries after the change.
type TicketStatusChangedPayload struct {
	TicketNumber   string              `json:"ticket_number"`
	HistoryEntryID string              `json:"history_entry_id"`
	OldStatus      domain.TicketStatus `json:"old_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
	Comment        string              `json:"comment,omitempty"`
	HistoryLength  int                 `json:"history_length"`
}
