package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/repository"
)

// DefaultCas2AbandonAfter is how long an unsubmitted CAS2 application may
// sit before it is marked abandoned.
const DefaultCas2AbandonAfter = 90 * 24 * time.Hour

// StaleCas2AbandonArgs is a periodic maintenance job that abandons old,
// never-submitted CAS2 applications.
type StaleCas2AbandonArgs struct{}

// Kind returns the job kind identifier.
func (StaleCas2AbandonArgs) Kind() string { return "stale_cas2_application_abandon" }

// InsertOpts ensures at most one run is enqueued within the same day.
func (StaleCas2AbandonArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// StaleCas2AbandonWorker marks applications abandoned once they are older
// than the configured age.
type StaleCas2AbandonWorker struct {
	river.WorkerDefaults[StaleCas2AbandonArgs]
	store repository.Cas2Repository
	after time.Duration
	now   func() time.Time
}

// NewStaleCas2AbandonWorker creates the worker. Non-positive ages fall back
// to DefaultCas2AbandonAfter.
func NewStaleCas2AbandonWorker(store repository.Cas2Repository, after time.Duration) *StaleCas2AbandonWorker {
	if after <= 0 {
		after = DefaultCas2AbandonAfter
	}
	return &StaleCas2AbandonWorker{store: store, after: after, now: time.Now}
}

// Work abandons every stale application in one statement.
func (w *StaleCas2AbandonWorker) Work(ctx context.Context, _ *river.Job[StaleCas2AbandonArgs]) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("cas2 abandon worker is not initialized")
	}

	now := w.now().UTC()
	cutoff := now.Add(-w.after)
	n, err := w.store.AbandonStaleCas2Applications(ctx, cutoff, now)
	if err != nil {
		return fmt.Errorf("abandon cas2 applications created before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("stale cas2 applications abandoned",
		zap.Int64("abandoned", n),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("after", w.after),
	)
	return nil
}

// StaleCas2AbandonPeriodic schedules the job daily, running once at start.
func StaleCas2AbandonPeriodic() *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(24*time.Hour),
		func() (river.JobArgs, *river.InsertOpts) {
			return StaleCas2AbandonArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
