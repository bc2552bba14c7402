package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/service"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

// IdempotencyKeyHeader lets a client retry a submission without creating a second ticket.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayHeader is set on responses that return a previously created ticket.
const ReplayHeader = "Idempotent-Replayed"

// TicketsHandler serves the public intake and tracking endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	ticket, replayed, err := h.service.CreateTicketIdempotent(c.UserContext(), c.Get(IdempotencyKeyHeader), createInput(req))
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
		c.Set(ReplayHeader, "true")
	}
	return c.Status(status).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// TrackTicket POST /api/tickets/track.
func (h *TicketsHandler) TrackTicket(c *fiber.Ctx) error {
	var req dto.TrackTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	return h.track(c, req.TicketNumber)
}

// TrackTicketByNumber GET /api/tickets/track/:number.
func (h *TicketsHandler) TrackTicketByNumber(c *fiber.Ctx) error {
	return h.track(c, c.Params("number"))
}

// track renders NOT_FOUND with one neutral message whether the number was
// malformed or unknown.
func (h *TicketsHandler) track(c *fiber.Ctx, number string) error {
	projection, err := h.service.TrackByNumber(c.UserContext(), number)
	if err == nil {
		return c.JSON(fiber.Map{"data": projection})
	}
	de := apperrors.ToDomainError(err)
	switch de.Code {
	case apperrors.CodeInvalidInput:
		return apperrors.NewInvalidInput("ticket number required", de.Details)
	case apperrors.CodeNotFound:
		return apperrors.NewDomainError(apperrors.CodeNotFound, "no ticket found", http.StatusNotFound, nil)
	default:
		return &apperrors.DomainError{
			Code:       de.Code,
			Message:    "ticket lookup unavailable, please try again later",
			HTTPStatus: de.HTTPStatus,
			Err:        de.Err,
		}
	}
}

// CatalogHandler serves the static intake catalog.
type CatalogHandler struct {
	catalog catalog.Provider
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(provider catalog.Provider) *CatalogHandler {
	return &CatalogHandler{catalog: provider}
}

// GetCatalog GET /api/catalog.
func (h *CatalogHandler) GetCatalog(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"categories":      h.catalog.Categories(),
		"shippingOptions": h.catalog.ShippingOptions(),
		"salutations":     h.catalog.Salutations(),
		"statuses":        h.catalog.Statuses(),
	}})
}

func createInput(req dto.CreateTicketRequest) service.TicketCreateInput {
	return service.TicketCreateInput{
		Category:                 req.Category,
		ProblemDetail:            req.ProblemDetail,
		HasRestarted:             req.HasRestarted,
		ShippingOption:           req.ShippingOption,
		AccountNumber:            req.AccountNumber,
		DisplayNumber:            req.DisplayNumber,
		DisplayLocation:          req.DisplayLocation,
		AlternateReturnAddress:   req.AlternateReturnAddress,
		Email:                    req.Email,
		AdditionalDeviceAffected: req.AdditionalDeviceAffected,
		DifferentShippingAddress: req.DifferentShippingAddress,
		ShippingAddress:          req.ShippingAddress,
		Salutation:               req.Salutation,
		ContactPerson:            req.ContactPerson,
	}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                       ticket.ID,
		TicketNumber:             ticket.TicketNumber,
		Category:                 ticket.Category,
		ProblemDetail:            ticket.ProblemDetail,
		HasRestarted:             ticket.HasRestarted,
		ShippingOption:           ticket.ShippingOption,
		AccountNumber:            ticket.AccountNumber,
		DisplayNumber:            ticket.DisplayNumber,
		DisplayLocation:          ticket.DisplayLocation,
		AlternateReturnAddress:   ticket.AlternateReturnAddress,
		Email:                    ticket.Email,
		AdditionalDeviceAffected: ticket.AdditionalDeviceAffected,
		DifferentShippingAddress: ticket.DifferentShippingAddress,
		ShippingAddress:          ticket.ShippingAddress,
		Salutation:               ticket.Salutation,
		ContactPerson:            ticket.ContactPerson,
		Status:                   ticket.Status,
		CreatedAt:                ticket.CreatedAt,
		UpdatedAt:                ticket.UpdatedAt,
	}
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:             ticket.ID,
		TicketNumber:   ticket.TicketNumber,
		Category:       ticket.Category,
		ProblemDetail:  ticket.ProblemDetail,
		ShippingOption: ticket.ShippingOption,
		DisplayNumber:  ticket.DisplayNumber,
		ContactPerson:  ticket.ContactPerson,
		Status:         ticket.Status,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

func historyResponse(entry *domain.StatusHistoryEntry) dto.StatusHistoryResponse {
	return dto.StatusHistoryResponse{
		ID:          entry.ID,
		FromStatus:  entry.FromStatus,
		ToStatus:    entry.ToStatus,
		Comment:     entry.Comment,
		ChangedByID: entry.ChangedByID,
		CreatedAt:   entry.CreatedAt,
	}
}
