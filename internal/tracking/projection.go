// Package tracking builds the redacted ticket view served to unauthenticated callers.
//
// Project is the only path from a domain.Ticket to anything the public tracking
// endpoint, its cache and the CLI render. Contact, account and address fields
// and the previous status of history entries never leave this package.
package tracking

import (
	"time"

	"github.com/spec-kit/display-support/internal/domain"
)

// HistoryItem is a history entry reduced to what the customer may see.
type HistoryItem struct {
	ToStatus  domain.TicketStatus `json:"toStatus"`
	Comment   *string             `json:"comment"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Stage is one node of the progress timeline.
type Stage struct {
	Status domain.TicketStatus `json:"status"`
	State  domain.StageState   `json:"state"`
}

// Projection is the public tracking view. History is oldest-first.
type Projection struct {
	TicketNumber   string              `json:"ticketNumber"`
	Category       domain.Category     `json:"category"`
	ProblemDetail  string              `json:"problemDetail"`
	Status         domain.TicketStatus `json:"status"`
	DisplayNumber  string              `json:"displayNumber"`
	ShippingOption string              `json:"shippingOption"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	StatusHistory  []HistoryItem       `json:"statusHistory"`
	Timeline       []Stage             `json:"timeline"`
}

// Version orders projections of one ticket. History is append-only, so a
// projection with more entries is never older than one with fewer.
func (p Projection) Version() int {
	return len(p.StatusHistory)
}

// Project redacts ticket. History must be in canonical oldest-first order.
func Project(ticket *domain.Ticket) Projection {
	history := make([]HistoryItem, 0, len(ticket.History))
	for _, entry := range ticket.History {
		var comment *string
		if entry.Comment != nil {
			c := *entry.Comment
			comment = &c
		}
		history = append(history, HistoryItem{
			ToStatus:  entry.ToStatus,
			Comment:   comment,
			CreatedAt: entry.CreatedAt,
		})
	}

	stages, _ := domain.BuildTimeline(ticket.Status)
	timeline := make([]Stage, len(stages))
	for i, s := range stages {
		timeline[i] = Stage{Status: s.Status, State: s.State}
	}

	return Projection{
		TicketNumber:   ticket.TicketNumber,
		Category:       ticket.Category,
		ProblemDetail:  ticket.ProblemDetail,
		Status:         ticket.Status,
		DisplayNumber:  ticket.DisplayNumber,
		ShippingOption: ticket.ShippingOption,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		StatusHistory:  history,
		Timeline:       timeline,
	}
}
