package inbound

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/messaging"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
)

// Router decodes inbound notifications and dispatches them by event type.
type Router struct {
	dispatcher *domain.EventDispatcher
	metrics    *metrics.Metrics
}

// NewRouter creates a Router with no handlers. m may be nil.
func NewRouter(m *metrics.Metrics) *Router {
	return &Router{dispatcher: domain.NewEventDispatcher(), metrics: m}
}

// Register adds a handler for eventType.
func (r *Router) Register(eventType string, h domain.EventHandler) {
	r.dispatcher.Register(eventType, h)
}

// Handle implements messaging.Handler. Event types with no handler are
// acknowledged and dropped; malformed payloads and handler failures are
// rejected.
func (r *Router) Handle(ctx context.Context, routingKey string, body []byte) messaging.Disposition {
	log := logger.FromContext(ctx).With(zap.String("routing_key", routingKey))

	var ev domain.EventNotification
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Warn("Inbound message is not a notification", zap.Error(err))
		r.metrics.InboundMessage(routingKey, "malformed")
		return messaging.Reject
	}
	if ev.EventType == "" {
		ev.EventType = routingKey
	}
	if !r.dispatcher.Handles(ev.EventType) {
		log.Debug("Inbound event type not handled", zap.String("event_type", ev.EventType))
		r.metrics.InboundMessage(ev.EventType, "unhandled")
		return messaging.Ack
	}
	if err := r.dispatcher.Dispatch(ctx, &ev); err != nil {
		if errors.Is(err, errMalformed) {
			log.Warn("Inbound event rejected", zap.String("event_type", ev.EventType), zap.Error(err))
		}
		return messaging.Reject
	}
	return messaging.Ack
}
