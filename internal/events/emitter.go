// Package events records domain events and schedules their publication.
//
// Every event is appended to the domain_events table inside the caller's
// transaction. When publishing is enabled the same transaction enqueues a
// publish job, so an event is published only if the state change commits.
//
// Import Path: approvedpremises.io/cas/internal/events
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/repository"
)

// ErrMissingTopic is returned at startup when publishing is enabled but no
// broker is configured.
var ErrMissingTopic = errors.New("domain event publishing is enabled but no broker is configured")

// PublishKind is the River job kind for outbound publication.
const PublishKind = "publish_domain_event"

var tracer = otel.Tracer("approvedpremises.io/cas/internal/events")

// PublishArgs asks the publish worker to send one persisted event.
type PublishArgs struct {
	EventID string `json:"event_id"`

	MaxAttempts int `json:"-"`
}

// Kind implements river.JobArgs.
func (PublishArgs) Kind() string { return PublishKind }

// InsertOpts bounds retries. Zero keeps River's default.
func (a PublishArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: a.MaxAttempts}
}

// Event is what a service hands to Emit. Details is marshalled into the
// envelope's eventDetails.
type Event struct {
	Type              domain.EventType
	ApplicationID     *string
	AssessmentID      *string
	BookingID         *string
	CRN               string
	NomsNumber        *string
	TriggeredByUserID *string
	OccurredAt        time.Time
	Details           any
}

// Emitter persists domain events and, if enabled, enqueues their publication.
type Emitter struct {
	publish     bool
	maxAttempts int
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewEmitter resolves the publish target once. brokerConfigured reports
// whether a message broker URL and exchange are set.
func NewEmitter(cfg config.DomainEventsConfig, brokerConfigured bool, m *metrics.Metrics) (*Emitter, error) {
	if cfg.PublishEnabled && !brokerConfigured {
		return nil, ErrMissingTopic
	}
	return &Emitter{
		publish:     cfg.PublishEnabled,
		maxAttempts: cfg.MaxAttempts,
		metrics:     m,
		now:         time.Now,
	}, nil
}

// PublishEnabled reports whether emitted events are scheduled for publication.
func (e *Emitter) PublishEnabled() bool { return e.publish }

// Emit appends the event through tx and schedules publication. tx must be
// the transaction that holds the state change the event describes.
func (e *Emitter) Emit(ctx context.Context, tx repository.Store, ev Event) (*domain.DomainEvent, error) {
	ctx, span := tracer.Start(ctx, "events.Emit")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", string(ev.Type)))

	details, err := json.Marshal(ev.Details)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal details")
		return nil, fmt.Errorf("marshal %s details: %w", ev.Type, err)
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = e.now()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	envelope := domain.Envelope{
		ID:           id.String(),
		Timestamp:    occurred.UTC(),
		EventType:    ev.Type,
		EventDetails: details,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", ev.Type, err)
	}

	row := &domain.DomainEvent{
		ID:                envelope.ID,
		ApplicationID:     ev.ApplicationID,
		AssessmentID:      ev.AssessmentID,
		BookingID:         ev.BookingID,
		CRN:               ev.CRN,
		NomsNumber:        ev.NomsNumber,
		Type:              ev.Type,
		OccurredAt:        envelope.Timestamp,
		CreatedAt:         e.now().UTC(),
		Data:              string(body),
		TriggeredByUserID: ev.TriggeredByUserID,
		Service:           ev.Type.Service(),
	}
	if err := tx.CreateDomainEvent(ctx, row); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		return nil, fmt.Errorf("persist %s event: %w", ev.Type, err)
	}
	e.metrics.EventPersisted(string(ev.Type))
	span.SetAttributes(attribute.String("event.id", row.ID))

	if !e.publish {
		return row, nil
	}
	if err := tx.Enqueue(ctx, PublishArgs{EventID: row.ID, MaxAttempts: e.maxAttempts}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue")
		return nil, fmt.Errorf("enqueue publish of event %s: %w", row.ID, err)
	}
	logger.FromContext(ctx).Debug("Domain event scheduled for publication",
		zap.String("event_id", row.ID),
		zap.String("event_type", string(ev.Type)),
	)
	return row, nil
}

// NotificationVersion is the version of the published notification format.
const NotificationVersion = 1

// BuildNotification turns a persisted event into the lightweight message
// sent to the broker. Consumers fetch detailUrl for the full payload.
func BuildNotification(ev *domain.DomainEvent, detailURLBase string) domain.EventNotification {
	n := domain.EventNotification{
		EventType:             string(ev.Type),
		Version:               NotificationVersion,
		Description:           ev.Type.Description(),
		DetailURL:             strings.TrimRight(detailURLBase, "/") + "/events/" + ev.ID,
		OccurredAt:            ev.OccurredAt.UTC(),
		AdditionalInformation: map[string]any{},
	}
	if ev.ApplicationID != nil {
		n.AdditionalInformation["applicationId"] = *ev.ApplicationID
	}
	if ev.CRN != "" {
		n.PersonReference.Identifiers = append(n.PersonReference.Identifiers,
			domain.PersonIdentifier{Type: "CRN", Value: ev.CRN})
	}
	if ev.NomsNumber != nil && *ev.NomsNumber != "" {
		n.PersonReference.Identifiers = append(n.PersonReference.Identifiers,
			domain.PersonIdentifier{Type: "NOMS", Value: *ev.NomsNumber})
	}
	return n
}
