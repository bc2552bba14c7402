package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/cache"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/events"
	"github.com/spec-kit/display-support/internal/observability"
	"github.com/spec-kit/display-support/internal/repository"
	"github.com/spec-kit/display-support/internal/ticketnumber"
	"github.com/spec-kit/display-support/internal/tracking"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

// DefaultMaxAttempts bounds ticket number regeneration when none is configured.
const DefaultMaxAttempts = 5

const (
	maxIdempotencyKeyLength = 200
	// idempotencyWriteTimeout bounds key bookkeeping that outlives the request context.
	idempotencyWriteTimeout = 2 * time.Second
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	catalog     catalog.Provider
	generator   ticketnumber.Generator
	maxAttempts int
	dispatcher  events.Dispatcher
	tracking    cache.TrackingCache
	idempotency cache.IdempotencyStore
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service. Cache,
// idempotency store, metrics and dispatcher are optional.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	Catalog       catalog.Provider
	Generator     ticketnumber.Generator
	MaxAttempts   int
	Dispatcher    events.Dispatcher
	TrackingCache cache.TrackingCache
	Idempotency   cache.IdempotencyStore
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Clock         func() time.Time
}

// TicketCreateInput describes the intake payload.
type TicketCreateInput struct {
	Category                 domain.Category
	ProblemDetail            string
	HasRestarted             bool
	ShippingOption           string
	AccountNumber            string
	DisplayNumber            string
	DisplayLocation          string
	AlternateReturnAddress   *string
	Email                    string
	AdditionalDeviceAffected bool
	DifferentShippingAddress bool
	ShippingAddress          *string
	Salutation               domain.Salutation
	ContactPerson            string
}

// TicketListFilter describes staff listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	generator := deps.Generator
	if generator == nil {
		generator = ticketnumber.NewDateRandom(nil, 0)
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		catalog:     deps.Catalog,
		generator:   generator,
		maxAttempts: maxAttempts,
		dispatcher:  deps.Dispatcher,
		tracking:    deps.TrackingCache,
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         clock,
	}
}

// CreateTicket validates input and persists a new ticket in status open,
// regenerating the ticket number on collision up to the configured attempts.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	ticket, err := s.buildTicket(input)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		number := s.generator.Next()

		exists, err := s.tickets.ExistsByTicketNumber(ctx, number)
		if err != nil {
			return nil, storeError(ctx, err)
		}
		if exists {
			s.recordCollision(number, attempt)
			continue
		}

		ticket.TicketNumber = number
		err = s.tickets.Create(ctx, ticket)
		if errors.Is(err, repository.ErrTicketNumberTaken) {
			s.recordCollision(number, attempt)
			continue
		}
		if err != nil {
			return nil, storeError(ctx, err)
		}

		ticket.History = []domain.StatusHistoryEntry{}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    events.Actor{Type: events.ActorCustomer},
			Payload: events.TicketCreatedPayload{
				TicketNumber:   ticket.TicketNumber,
				Category:       ticket.Category,
				ShippingOption: ticket.ShippingOption,
				Attempts:       attempt,
			},
		})
		return ticket, nil
	}

	s.logger.Error("ticket number space exhausted", zap.Int("attempts", s.maxAttempts))
	return nil, apperrors.NewIdentityExhausted(s.maxAttempts)
}

// CreateTicketIdempotent runs CreateTicket at most once per key. A repeated
// key returns the ticket created first with replayed set. Without a key or an
// idempotency store it behaves like CreateTicket.
func (s *TicketService) CreateTicketIdempotent(ctx context.Context, key string, input TicketCreateInput) (*domain.Ticket, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || s.idempotency == nil {
		ticket, err := s.CreateTicket(ctx, input)
		return ticket, false, err
	}
	if len(key) > maxIdempotencyKeyLength {
		return nil, false, apperrors.NewInvalidInput("idempotency key too long", map[string]any{"Idempotency-Key": "too long"})
	}

	existingID, reserved, err := s.idempotency.Reserve(ctx, key)
	switch {
	case errors.Is(err, cache.ErrRequestInFlight):
		return nil, false, apperrors.NewConflict("a submission with this idempotency key is in progress", nil)
	case err != nil:
		s.logger.Warn("idempotency store unavailable; creating without key", zap.Error(err))
		ticket, err := s.CreateTicket(ctx, input)
		return ticket, false, err
	case !reserved:
		ticket, err := s.tickets.GetByID(ctx, existingID)
		if err == nil {
			return ticket, true, nil
		}
		s.logger.Warn("idempotency key points at unknown ticket; creating again",
			zap.String("ticket_id", existingID), zap.Error(err))
		// The stale key stays in place; Complete overwrites it below.
	}

	ticket, err := s.CreateTicket(ctx, input)

	// The request context may already be cancelled or past its deadline here;
	// a key left pending would block every retry until it expires.
	keyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyWriteTimeout)
	defer cancel()
	if err != nil {
		if relErr := s.idempotency.Release(keyCtx, key); relErr != nil {
			s.logger.Warn("release idempotency key", zap.Error(relErr))
		}
		return nil, false, err
	}
	if err := s.idempotency.Complete(keyCtx, key, ticket.ID); err != nil {
		s.logger.Warn("complete idempotency key", zap.Error(err))
	}
	return ticket, false, nil
}

// ApplyTransition moves a ticket to newStatus and records one history entry in
// the same unit of work. Any status may follow any other, including itself.
// The returned ticket carries its history oldest-first.
func (s *TicketService) ApplyTransition(ctx context.Context, staff *domain.StaffMember, ticketID string, newStatus domain.TicketStatus, comment *string) (*domain.Ticket, *domain.StatusHistoryEntry, error) {
	if staff == nil {
		return nil, nil, apperrors.NewUnauthorized("staff authentication required")
	}
	if !newStatus.Valid() {
		return nil, nil, apperrors.NewInvalidInput("invalid status", map[string]any{"status": "must be one of the six stages"})
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, nil, apperrors.NewNotFound("ticket", nil)
	}

	staffID := staff.ID
	ticket, entry, err := s.tickets.ApplyTransition(ctx, ticketID, repository.StatusChange{
		ToStatus:    newStatus,
		Comment:     normalizeOptional(comment),
		ChangedByID: &staffID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	payload := events.TicketStatusChangedPayload{
		TicketNumber:   ticket.TicketNumber,
		HistoryEntryID: entry.ID,
		NewStatus:      entry.ToStatus,
		HistoryLength:  len(ticket.History),
	}
	if entry.FromStatus != nil {
		payload.OldStatus = *entry.FromStatus
	}
	if entry.Comment != nil {
		payload.Comment = *entry.Comment
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: events.ActorStaff, StaffID: &staffID},
		Payload:  payload,
	})
	return ticket, entry, nil
}

// ListTickets returns tickets newest-created-first for the staff list and board.
func (s *TicketService) ListTickets(ctx context.Context, staff *domain.StaffMember, filter TicketListFilter) ([]domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff authentication required")
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewInvalidInput("invalid status filter", map[string]any{"status": string(status)})
		}
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Statuses:   filter.Statuses,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// GetTicketForStaff returns the full ticket with history oldest-first.
func (s *TicketService) GetTicketForStaff(ctx context.Context, staff *domain.StaffMember, ticketID string) (*domain.Ticket, error) {
	if staff == nil {
		return nil, apperrors.NewUnauthorized("staff authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

// TrackByNumber resolves the public projection of a ticket. Blank input is
// INVALID_INPUT; malformed and unknown numbers are both NOT_FOUND.
func (s *TicketService) TrackByNumber(ctx context.Context, rawNumber string) (*tracking.Projection, error) {
	number := ticketnumber.Normalize(rawNumber)
	if number == "" {
		return nil, apperrors.NewInvalidInput("ticket number required", map[string]any{"ticketNumber": "required"})
	}
	if !ticketnumber.Valid(number) {
		return nil, apperrors.NewNotFound("ticket", nil)
	}

	if s.tracking != nil {
		cached, hit, err := s.tracking.Get(ctx, number)
		switch {
		case err != nil:
			s.metrics.TrackingCacheLookup(observability.CacheError)
			s.logger.Warn("tracking cache read failed", zap.String("ticket_number", number), zap.Error(err))
		case hit:
			s.metrics.TrackingCacheLookup(observability.CacheHit)
			return cached, nil
		default:
			s.metrics.TrackingCacheLookup(observability.CacheMiss)
		}
	}

	ticket, err := s.tickets.GetByTicketNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.checkTimeline(ticket)

	projection := tracking.Project(ticket)
	if s.tracking != nil {
		if err := s.tracking.Set(ctx, number, projection); err != nil {
			s.logger.Warn("tracking cache write failed", zap.String("ticket_number", number), zap.Error(err))
		}
	}
	return &projection, nil
}

// Timeline derives the progress timeline for ticket, logging unknown statuses.
func (s *TicketService) Timeline(ticket *domain.Ticket) []domain.TimelineStage {
	stages, _ := domain.BuildTimeline(ticket.Status)
	s.checkTimeline(ticket)
	return stages
}

// Catalog returns the catalog the service validates against.
func (s *TicketService) Catalog() catalog.Provider {
	return s.catalog
}

func (s *TicketService) checkTimeline(ticket *domain.Ticket) {
	if !ticket.Status.Valid() {
		s.logger.Warn("ticket status outside lifecycle; timeline rendered from first stage",
			zap.String("ticket_id", ticket.ID),
			zap.String("status", string(ticket.Status)))
	}
}

func (s *TicketService) recordCollision(number string, attempt int) {
	s.metrics.TicketNumberCollision()
	s.logger.Warn("ticket number collision; regenerating",
		zap.String("ticket_number", number),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", s.maxAttempts))
}

func (s *TicketService) buildTicket(input TicketCreateInput) (*domain.Ticket, error) {
	details := map[string]any{}
	required := func(field, value string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			details[field] = "required"
		}
		return value
	}

	ticket := &domain.Ticket{
		Category:                 input.Category,
		ProblemDetail:            required("problemDetail", input.ProblemDetail),
		HasRestarted:             input.HasRestarted,
		ShippingOption:           required("shippingOption", input.ShippingOption),
		AccountNumber:            required("accountNumber", input.AccountNumber),
		DisplayNumber:            required("displayNumber", input.DisplayNumber),
		DisplayLocation:          required("displayLocation", input.DisplayLocation),
		AlternateReturnAddress:   normalizeOptional(input.AlternateReturnAddress),
		Email:                    required("email", input.Email),
		AdditionalDeviceAffected: input.AdditionalDeviceAffected,
		DifferentShippingAddress: input.DifferentShippingAddress,
		ShippingAddress:          normalizeOptional(input.ShippingAddress),
		Salutation:               input.Salutation,
		ContactPerson:            required("contactPerson", input.ContactPerson),
		Status:                   domain.InitialStatus,
	}

	if !ticket.Category.Valid() {
		details["category"] = "must be one of hardware, software, network"
	} else if _, missing := details["problemDetail"]; !missing && s.catalog != nil && !s.catalog.HasProblem(ticket.Category, ticket.ProblemDetail) {
		details["problemDetail"] = "unknown problem for category"
	}
	if !ticket.HasRestarted {
		details["hasRestarted"] = "restart must be confirmed"
	}
	if _, missing := details["shippingOption"]; !missing && s.catalog != nil && !s.catalog.HasShippingOption(ticket.ShippingOption) {
		details["shippingOption"] = "unknown shipping option"
	}
	if _, missing := details["email"]; !missing {
		// A bare address only: display names and angle brackets would be stored verbatim.
		if addr, err := mail.ParseAddress(ticket.Email); err != nil || addr.Address != ticket.Email {
			details["email"] = "invalid email address"
		}
	}
	if !ticket.Salutation.Valid() {
		details["salutation"] = "must be one of herr, frau, divers"
	}

	if len(details) > 0 {
		return nil, apperrors.NewInvalidInput("ticket payload incomplete", details)
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// normalizeOptional trims value and maps blank to nil.
// storeError reports a store failure caused by the caller's deadline or
// cancellation as transient so the caller can retry.
func storeError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTransientFailure("ticket store did not respond in time", err)
	}
	return apperrors.NewInternalError(err)
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
