package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/display-support/internal/cache"
	"github.com/spec-kit/display-support/internal/events"
	"github.com/spec-kit/display-support/internal/observability"
	"github.com/spec-kit/display-support/internal/service"
)

// Subscribers groups the optional event consumers started with the API.
type Subscribers struct {
	Audit         *service.AuditService
	TrackingCache cache.TrackingCache
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// StartEventWorkers registers ticket event handlers on dispatcher.
func StartEventWorkers(dispatcher events.Dispatcher, subs Subscribers) {
	if dispatcher == nil {
		return
	}
	logger := subs.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if subs.Audit != nil {
		subs.Audit.RegisterHandlers()
	}

	if subs.Metrics != nil {
		dispatcher.Subscribe(events.EventTicketCreated, func(context.Context, events.Event) error {
			subs.Metrics.TicketCreated()
			return nil
		})
		dispatcher.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, event events.Event) error {
			if p, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
				subs.Metrics.StatusTransition(p.NewStatus)
			}
			return nil
		})
	}

	if subs.TrackingCache != nil {
		dispatcher.Subscribe(events.EventTicketStatusChanged, invalidateTracking(subs.TrackingCache, logger))
	}
}

// invalidateTracking drops the cached projection so the next lookup sees the new status.
func invalidateTracking(trackingCache cache.TrackingCache, logger *zap.Logger) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		p, ok := event.Payload.(events.TicketStatusChangedPayload)
		if !ok || p.TicketNumber == "" {
			return nil
		}
		if err := trackingCache.Invalidate(ctx, p.TicketNumber, p.HistoryLength); err != nil {
			return err
		}
		logger.Debug("tracking projection invalidated", zap.String("ticket_number", p.TicketNumber))
		return nil
	}
}
