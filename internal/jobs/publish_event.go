package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/riverqueue/river"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/messaging"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/repository"
)

var tracer = otel.Tracer("approvedpremises.io/cas/internal/jobs")

// PublishDomainEventWorker sends a persisted domain event to the broker.
//
// Execution flow:
//  1. Load the event row by id (claim-check)
//  2. Build the notification with the detail URL
//  3. Publish with the event type as routing key
//
// Publishing is best effort. River retries failures until MaxAttempts, after
// which the job is discarded and the failure logged.
type PublishDomainEventWorker struct {
	river.WorkerDefaults[events.PublishArgs]
	store         repository.DomainEventRepository
	publisher     messaging.Publisher
	detailURLBase string
	metrics       *metrics.Metrics
}

// NewPublishDomainEventWorker creates the worker.
func NewPublishDomainEventWorker(store repository.DomainEventRepository, publisher messaging.Publisher, detailURLBase string, m *metrics.Metrics) *PublishDomainEventWorker {
	return &PublishDomainEventWorker{store: store, publisher: publisher, detailURLBase: detailURLBase, metrics: m}
}

// Work publishes one event.
func (w *PublishDomainEventWorker) Work(ctx context.Context, job *river.Job[events.PublishArgs]) error {
	eventID := job.Args.EventID
	ctx, span := tracer.Start(ctx, "jobs.PublishDomainEvent")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", eventID), attribute.Int("job.attempt", job.Attempt))

	ev, err := w.store.GetDomainEvent(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		span.SetStatus(codes.Error, "event missing")
		return river.JobCancel(fmt.Errorf("domain event %s not found", eventID))
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load domain event %s: %w", eventID, err)
	}

	n := events.BuildNotification(ev, w.detailURLBase)
	if err := w.publisher.PublishJSON(ctx, n.EventType, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		final := job.Attempt >= job.MaxAttempts
		outcome := "retry"
		if final {
			outcome = "discarded"
			logger.Error("Domain event publication discarded after final attempt",
				zap.String("event_id", eventID),
				zap.String("event_type", n.EventType),
				zap.Int("attempt", job.Attempt),
				zap.Error(err),
			)
		}
		w.metrics.EventPublished(n.EventType, outcome)
		return fmt.Errorf("publish domain event %s: %w", eventID, err)
	}

	w.metrics.EventPublished(n.EventType, "ok")
	logger.Info("Domain event published",
		zap.String("event_id", eventID),
		zap.String("event_type", n.EventType),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
