package dto

import (
	"time"

	"github.com/spec-kit/display-support/internal/domain"
)

// CreateTicketRequest is the full intake payload submitted once from the summary step.
type CreateTicketRequest struct {
	Category                 domain.Category   `json:"category"`
	ProblemDetail            string            `json:"problemDetail"`
	HasRestarted             bool              `json:"hasRestarted"`
	ShippingOption           string            `json:"shippingOption"`
	AccountNumber            string            `json:"accountNumber"`
	DisplayNumber            string            `json:"displayNumber"`
	DisplayLocation          string            `json:"displayLocation"`
	AlternateReturnAddress   *string           `json:"alternateReturnAddress,omitempty"`
	Email                    string            `json:"email"`
	AdditionalDeviceAffected bool              `json:"additionalDeviceAffected"`
	DifferentShippingAddress bool              `json:"differentShippingAddress"`
	ShippingAddress          *string           `json:"shippingAddress,omitempty"`
	Salutation               domain.Salutation `json:"salutation"`
	ContactPerson            string            `json:"contactPerson"`
}

// TicketResponse is the full staff/submitter view of a ticket.
type TicketResponse struct {
	ID                       string              `json:"id"`
	TicketNumber             string              `json:"ticketNumber"`
	Category                 domain.Category     `json:"category"`
	ProblemDetail            string              `json:"problemDetail"`
	HasRestarted             bool                `json:"hasRestarted"`
	ShippingOption           string              `json:"shippingOption"`
	AccountNumber            string              `json:"accountNumber"`
	DisplayNumber            string              `json:"displayNumber"`
	DisplayLocation          string              `json:"displayLocation"`
	AlternateReturnAddress   *string             `json:"alternateReturnAddress"`
	Email                    string              `json:"email"`
	AdditionalDeviceAffected bool                `json:"additionalDeviceAffected"`
	DifferentShippingAddress bool                `json:"differentShippingAddress"`
	ShippingAddress          *string             `json:"shippingAddress"`
	Salutation               domain.Salutation   `json:"salutation"`
	ContactPerson            string              `json:"contactPerson"`
	Status                   domain.TicketStatus `json:"status"`
	CreatedAt                time.Time           `json:"createdAt"`
	UpdatedAt                time.Time           `json:"updatedAt"`
}

// TicketSummary is one row of the staff list and kanban board.
type TicketSummary struct {
	ID             string              `json:"id"`
	TicketNumber   string              `json:"ticketNumber"`
	Category       domain.Category     `json:"category"`
	ProblemDetail  string              `json:"problemDetail"`
	ShippingOption string              `json:"shippingOption"`
	DisplayNumber  string              `json:"displayNumber"`
	ContactPerson  string              `json:"contactPerson"`
	Status         domain.TicketStatus `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// StatusHistoryResponse is a staff-facing history entry.
type StatusHistoryResponse struct {
	ID          string               `json:"id"`
	FromStatus  *domain.TicketStatus `json:"fromStatus"`
	ToStatus    domain.TicketStatus  `json:"toStatus"`
	Comment     *string              `json:"comment"`
	ChangedByID *string              `json:"changedBy,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// TimelineStageResponse is one node of the progress timeline.
type TimelineStageResponse struct {
	Status domain.TicketStatus `json:"status"`
	Label  string              `json:"label"`
	State  domain.StageState   `json:"state"`
}

// TicketDetailResponse is the staff detail view; history is newest-first.
type TicketDetailResponse struct {
	TicketResponse
	StatusHistory []StatusHistoryResponse `json:"statusHistory"`
	Timeline      []TimelineStageResponse `json:"timeline"`
}

// UpdateStatusRequest payload for PATCH /api/staff/tickets/:id/status.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment *string             `json:"comment,omitempty"`
}

// StatusChangeResponse returns the updated ticket and the entry just written.
type StatusChangeResponse struct {
	Ticket        TicketDetailResponse  `json:"ticket"`
	StatusHistory StatusHistoryResponse `json:"statusHistory"`
}

// TrackTicketRequest payload for POST /api/tickets/track.
type TrackTicketRequest struct {
	TicketNumber string `json:"ticketNumber"`
}

// ErrorBody mirrors the error envelope rendered by the HTTP layer.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope wraps ErrorBody.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
