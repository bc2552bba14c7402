// Package board keeps a staff session's ticket list for the list and kanban
// views. Status changes are applied to the local list before the server
// confirms them and rolled back wholesale when the server call fails.
package board

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/domain"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

// ErrBusy is returned while another mutation or load is in flight.
var ErrBusy = errors.New("another board update is in progress")

// Source is the API the board reads from and writes through.
type Source interface {
	ListTickets(ctx context.Context, statuses []domain.TicketStatus, search string) ([]dto.TicketSummary, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, comment *string) (*dto.StatusChangeResponse, error)
}

// Stats are derived from the local list, never taken from the server.
type Stats struct {
	ByStatus   map[domain.TicketStatus]int
	Total      int
	Open       int
	InProgress int
	Completed  int
	Unknown    int
}

// Board is the staff view state.
type Board struct {
	mu      sync.Mutex
	source  Source
	logger  *zap.Logger
	tickets []dto.TicketSummary
	stats   Stats
	busy    bool
}

// New builds an empty board; call Load to fill it.
func New(source Source, logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{source: source, logger: logger, stats: computeStats(nil)}
}

// NewWithTickets builds a board from an existing list.
func NewWithTickets(source Source, logger *zap.Logger, tickets []dto.TicketSummary) *Board {
	b := New(source, logger)
	b.tickets = cloneTickets(tickets)
	b.stats = computeStats(b.tickets)
	return b
}

// Load replaces the list with the server's, newest first.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return ErrBusy
	}
	b.busy = true
	b.mu.Unlock()

	tickets, err := b.source.ListTickets(ctx, nil, "")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	if err != nil {
		return err
	}
	b.tickets = cloneTickets(tickets)
	b.stats = computeStats(b.tickets)
	return nil
}

// Tickets returns a copy of the current list.
func (b *Board) Tickets() []dto.TicketSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneTickets(b.tickets)
}

// Stats returns the current aggregates.
func (b *Board) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneStats(b.stats)
}

// ChangeStatus moves ticketID to status optimistically. If the server call
// fails the whole list and the stats return to their state before the call.
func (b *Board) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus, comment *string) error {
	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return ErrBusy
	}
	if !status.Valid() {
		b.mu.Unlock()
		return apperrors.NewInvalidInput("invalid status", map[string]any{"status": string(status)})
	}
	idx := b.indexOf(ticketID)
	if idx < 0 {
		b.mu.Unlock()
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	snapshot := cloneTickets(b.tickets)
	prevStats := cloneStats(b.stats)
	b.tickets[idx].Status = status
	b.busy = true
	b.mu.Unlock()

	resp, err := b.source.UpdateStatus(ctx, ticketID, status, comment)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	if err != nil {
		b.tickets = snapshot
		b.stats = prevStats
		b.logger.Warn("status change rolled back",
			zap.String("ticket_id", ticketID),
			zap.String("status", string(status)),
			zap.Error(err))
		var de *apperrors.DomainError
		if errors.As(err, &de) {
			return err
		}
		return apperrors.NewTransientFailure("status update failed", err)
	}

	if i := b.indexOf(ticketID); i >= 0 && resp != nil {
		b.tickets[i].Status = resp.Ticket.Status
		b.tickets[i].UpdatedAt = resp.Ticket.UpdatedAt
	}
	b.stats = computeStats(b.tickets)
	return nil
}

// Columns partitions the list into the six lifecycle buckets. Tickets with a
// status outside the lifecycle are returned separately and logged.
func (b *Board) Columns() (map[domain.TicketStatus][]dto.TicketSummary, []dto.TicketSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()

	columns := make(map[domain.TicketStatus][]dto.TicketSummary, len(domain.StatusOrder))
	for _, status := range domain.StatusOrder {
		columns[status] = []dto.TicketSummary{}
	}
	var unknown []dto.TicketSummary
	for _, t := range b.tickets {
		if !t.Status.Valid() {
			unknown = append(unknown, t)
			continue
		}
		columns[t.Status] = append(columns[t.Status], t)
	}
	for _, t := range unknown {
		b.logger.Warn("ticket with unknown status left out of board columns",
			zap.String("ticket_id", t.ID),
			zap.String("status", string(t.Status)))
	}
	return columns, unknown
}

// Filter returns tickets in status (empty for all) whose number, contact
// person or display number contains search, ignoring case.
func (b *Board) Filter(status domain.TicketStatus, search string) []dto.TicketSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(search))
	out := []dto.TicketSummary{}
	for _, t := range b.tickets {
		if status != "" && t.Status != status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(t.TicketNumber), term) &&
			!strings.Contains(strings.ToLower(t.ContactPerson), term) &&
			!strings.Contains(strings.ToLower(t.DisplayNumber), term) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (b *Board) indexOf(id string) int {
	for i := range b.tickets {
		if b.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

func computeStats(tickets []dto.TicketSummary) Stats {
	stats := Stats{ByStatus: make(map[domain.TicketStatus]int, len(domain.StatusOrder))}
	for _, status := range domain.StatusOrder {
		stats.ByStatus[status] = 0
	}
	for _, t := range tickets {
		stats.Total++
		switch {
		case !t.Status.Valid():
			stats.Unknown++
			continue
		case t.Status == domain.TicketStatusOpen:
			stats.Open++
		case t.Status == domain.TicketStatusCompleted:
			stats.Completed++
		case t.Status.IsActive():
			stats.InProgress++
		}
		stats.ByStatus[t.Status]++
	}
	return stats
}

func cloneTickets(tickets []dto.TicketSummary) []dto.TicketSummary {
	if tickets == nil {
		return nil
	}
	return append([]dto.TicketSummary(nil), tickets...)
}

func cloneStats(s Stats) Stats {
	out := s
	out.ByStatus = make(map[domain.TicketStatus]int, len(s.ByStatus))
	for k, v := range s.ByStatus {
		out.ByStatus[k] = v
	}
	return out
}
