package event

import (
	"context"
	"sync/atomic"

	"github.com/erp/cvr/internal/domain/shared"
	"github.com/erp/cvr/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Delivery outcomes recorded by IdempotentHandler
const (
	DeliveryHandled   = "handled"
	DeliveryDuplicate = "duplicate"
	DeliveryFailed    = "failed"
)

// IdempotencyStats counts deliveries by outcome
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// DeliveryKey names one logical delivery in the idempotency store. Event ids
// come from producers, so the key is scoped by tenant.
func DeliveryKey(event shared.DomainEvent) string {
	return event.TenantID().String() + "/" + event.EventID().String()
}

// IdempotentHandler hands each delivery key to the wrapped handler once.
// A failed delivery releases its key so the producer's retry is processed.
type IdempotentHandler struct {
	next   shared.EventHandler
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
	log    *zap.Logger

	deliveries *telemetry.Counter

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithDeliveryMeter records cvr_event_deliveries_total by event type and
// outcome. A nil meter or an instrument error leaves metrics off.
func WithDeliveryMeter(meter metric.Meter) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if meter == nil {
			return
		}
		c, err := telemetry.NewCounter(meter, "cvr_event_deliveries_total",
			"Event deliveries by outcome", "{delivery}")
		if err != nil {
			h.log.Warn("Delivery metrics disabled", zap.Error(err))
			return
		}
		h.deliveries = c
	}
}

func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, log *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		next:   next,
		store:  store,
		config: shared.DefaultIdempotencyConfig(),
		log:    log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.next.Handle(ctx, event)
	}

	key := DeliveryKey(event)
	log := h.log.With(zap.String("delivery_key", key), zap.String("event_type", event.EventType()))

	first, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	if err != nil {
		// store unreachable: reconciling twice converges, dropping a change does not
		log.Warn("Idempotency store unavailable, handling delivery", zap.Error(err))
	} else if !first {
		h.record(ctx, event, DeliveryDuplicate)
		log.Debug("Duplicate delivery dropped")
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		h.record(ctx, event, DeliveryFailed)
		if uerr := h.store.Unmark(ctx, key); uerr != nil {
			log.Warn("Release delivery key", zap.Error(uerr))
		}
		return err
	}
	h.record(ctx, event, DeliveryHandled)
	return nil
}

func (h *IdempotentHandler) record(ctx context.Context, event shared.DomainEvent, outcome string) {
	switch outcome {
	case DeliveryHandled:
		h.processed.Add(1)
	case DeliveryDuplicate:
		h.duplicate.Add(1)
	case DeliveryFailed:
		h.failed.Add(1)
	}
	if h.deliveries != nil {
		h.deliveries.Inc(ctx,
			attribute.String("event_type", event.EventType()),
			attribute.String("outcome", outcome),
		)
	}
}

func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: h.processed.Load(),
		EventsDuplicate: h.duplicate.Load(),
		EventsFailed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
