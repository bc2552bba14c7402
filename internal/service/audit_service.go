package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/events"
)

// AuditService writes an audit log line for each ticket event. It does not
// notify customers.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{dispatcher: dispatcher, logger: logger.Named("audit")}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleTicketStatusChanged)
}

func (a *AuditService) handleTicketCreated(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
	}
	if p, ok := event.Payload.(events.TicketCreatedPayload); ok {
		fields = append(fields,
			zap.String("ticket_number", p.TicketNumber),
			zap.String("category", string(p.Category)),
			zap.Int("attempts", p.Attempts))
	}
	a.logger.Info("TicketCreated", fields...)
	return nil
}

func (a *AuditService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
	}
	if event.Actor.StaffID != nil {
		fields = append(fields, zap.String("staff_id", *event.Actor.StaffID))
	}
	if p, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		fields = append(fields,
			zap.String("ticket_number", p.TicketNumber),
			zap.String("history_entry_id", p.HistoryEntryID),
			zap.String("old_status", string(p.OldStatus)),
			zap.String("new_status", string(p.NewStatus)))
	}
	a.logger.Info("TicketStatusChanged", fields...)
	return nil
}
