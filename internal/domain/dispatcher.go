package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/pkg/logger"
)

// EventHandler processes an inbound event notification.
type EventHandler func(ctx context.Context, event *EventNotification) error

// EventDispatcher routes inbound notifications to handlers by event type.
type EventDispatcher struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Register registers a handler for a specific event type.
func (d *EventDispatcher) Register(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Handles reports whether any handler is registered for eventType.
func (d *EventDispatcher) Handles(eventType string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType]) > 0
}

// Dispatch calls every handler for the event type in registration order.
// A failing handler does not stop the rest; the first error is returned.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *EventNotification) error {
	d.mu.RLock()
	handlers := d.handlers[event.EventType]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Warn("No handlers registered for event type",
			zap.String("event_type", event.EventType),
		)
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Error("Event handler failed",
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s failed: %w", event.EventType, err)
			}
		}
	}

	return firstErr
}
