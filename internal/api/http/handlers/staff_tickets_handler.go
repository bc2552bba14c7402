package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/auth"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/service"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

// StaffTicketsHandler handles the staff list, detail and status endpoints.
type StaffTicketsHandler struct {
	tickets *service.TicketService
	catalog catalog.Provider
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService, catalog: ticketService.Catalog()}
}

// ListStaffTickets GET /api/staff/tickets.
func (h *StaffTicketsHandler) ListStaffTickets(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseStaffTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), staff, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetStaffTicket GET /api/staff/tickets/:id.
func (h *StaffTicketsHandler) GetStaffTicket(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicketForStaff(c.UserContext(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// UpdateStatus PATCH /api/staff/tickets/:id/status.
func (h *StaffTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewInvalidInput("status required", map[string]any{"status": "required"})
	}

	ticket, entry, err := h.tickets.ApplyTransition(c.UserContext(), staff, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusChangeResponse{
		Ticket:        h.ticketDetail(ticket),
		StatusHistory: historyResponse(entry),
	}})
}

// ticketDetail presents history newest-first.
func (h *StaffTicketsHandler) ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	newest := domain.NewestFirst(ticket.History)
	history := make([]dto.StatusHistoryResponse, 0, len(newest))
	for i := range newest {
		history = append(history, historyResponse(&newest[i]))
	}
	stages := h.tickets.Timeline(ticket)
	timeline := make([]dto.TimelineStageResponse, 0, len(stages))
	for _, stage := range stages {
		label := string(stage.Status)
		if h.catalog != nil {
			label = h.catalog.StatusLabel(stage.Status)
		}
		timeline = append(timeline, dto.TimelineStageResponse{Status: stage.Status, Label: label, State: stage.State})
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		StatusHistory:  history,
		Timeline:       timeline,
	}
}

func staffPrincipal(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Staff, nil
}

// Paging bounds for the staff list.
const (
	maxPageSize = 200
	maxPage     = 100000
)

// parseStaffTicketFilter reads status, search, page and page_size. Without
// page_size every matching ticket is returned.
func parseStaffTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
			}
		}
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}
	if pageSize := parseInt(c.Query("page_size"), 0); pageSize > 0 {
		page := parseInt(c.Query("page"), 1)
		if pageSize > maxPageSize {
			return filter, apperrors.NewInvalidInput("page_size too large", map[string]any{"page_size": fmt.Sprintf("at most %d", maxPageSize)})
		}
		if page > maxPage {
			return filter, apperrors.NewInvalidInput("page too large", map[string]any{"page": fmt.Sprintf("at most %d", maxPage)})
		}
		filter.Limit = pageSize
		filter.Offset = (page - 1) * pageSize
	}
	return filter, nil
}
