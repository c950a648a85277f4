package service

import (
	"context"
	"fmt"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

// EventService serves persisted domain events to consumers following a
// notification's detail URL.
type EventService struct {
	store repository.Store
}

// NewEventService creates the service.
func NewEventService(d Deps) *EventService {
	return &EventService{store: d.Store}
}

// Get returns the event, or nil if it does not exist.
func (s *EventService) Get(ctx context.Context, id string) (*domain.DomainEvent, error) {
	ev, err := lookup(s.store.GetDomainEvent(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("load domain event %s: %w", id, err)
	}
	return ev, nil
}
