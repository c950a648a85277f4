package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository/memstore"
)

func TestStaleCas2AbandonArgsKind(t *testing.T) {
	t.Parallel()

	if got := (StaleCas2AbandonArgs{}).Kind(); got != "stale_cas2_application_abandon" {
		t.Fatalf("Kind() = %q, want %q", got, "stale_cas2_application_abandon")
	}
}

func TestStaleCas2AbandonArgsInsertOpts(t *testing.T) {
	t.Parallel()

	opts := (StaleCas2AbandonArgs{}).InsertOpts()
	if opts.Queue != river.QueueDefault {
		t.Fatalf("Queue = %q, want %q", opts.Queue, river.QueueDefault)
	}
	if opts.MaxAttempts != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", opts.MaxAttempts)
	}
	if opts.UniqueOpts.ByPeriod != 24*time.Hour {
		t.Fatalf("UniqueOpts.ByPeriod = %s, want %s", opts.UniqueOpts.ByPeriod, 24*time.Hour)
	}
	if !opts.UniqueOpts.ByQueue || !opts.UniqueOpts.ByArgs {
		t.Fatal("UniqueOpts must be by queue and args")
	}
}

func TestNewStaleCas2AbandonWorkerAge(t *testing.T) {
	t.Parallel()

	t.Run("defaults when non-positive", func(t *testing.T) {
		w := NewStaleCas2AbandonWorker(nil, 0)
		if w.after != DefaultCas2AbandonAfter {
			t.Fatalf("after = %s, want %s", w.after, DefaultCas2AbandonAfter)
		}
	})

	t.Run("uses explicit age", func(t *testing.T) {
		want := 7 * 24 * time.Hour
		w := NewStaleCas2AbandonWorker(nil, want)
		if w.after != want {
			t.Fatalf("after = %s, want %s", w.after, want)
		}
	})
}

func TestStaleCas2AbandonWorkerWork(t *testing.T) {
	t.Parallel()

	t.Run("uninitialized", func(t *testing.T) {
		var w *StaleCas2AbandonWorker
		err := w.Work(context.Background(), nil)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("Work() error = %v, want contains %q", err, "not initialized")
		}
	})

	t.Run("abandons only old unsubmitted applications", func(t *testing.T) {
		ctx := context.Background()
		store := memstore.New()
		now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		submitted := now.AddDate(0, -5, 0)
		for _, app := range []*domain.Cas2Application{
			{ID: "old", NomsNumber: "A1", CreatedAt: now.AddDate(0, -4, 0)},
			{ID: "old-submitted", NomsNumber: "A2", CreatedAt: now.AddDate(0, -6, 0), SubmittedAt: &submitted},
			{ID: "recent", NomsNumber: "A3", CreatedAt: now.AddDate(0, 0, -2)},
		} {
			if err := store.CreateCas2Application(ctx, app); err != nil {
				t.Fatal(err)
			}
		}

		w := NewStaleCas2AbandonWorker(store, 90*24*time.Hour)
		w.now = func() time.Time { return now }
		if err := w.Work(ctx, nil); err != nil {
			t.Fatalf("Work() error = %v", err)
		}

		for id, want := range map[string]bool{"old": true, "old-submitted": false, "recent": false} {
			got, err := store.GetCas2Application(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if (got.AbandonedAt != nil) != want {
				t.Errorf("%s abandoned = %v, want %v", id, got.AbandonedAt != nil, want)
			}
		}
	})
}
