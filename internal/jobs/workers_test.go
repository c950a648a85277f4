package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/repository/memstore"
)

type recordingPublisher struct {
	keys     []string
	messages []any
	err      error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, routingKey string, v any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.messages = append(p.messages, v)
	return nil
}

type recordingSender struct {
	sent []notification.Email
	err  error
}

func (s *recordingSender) Send(_ context.Context, e notification.Email) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, e)
	return nil
}

func publishJob(id string, attempt, max int) *river.Job[events.PublishArgs] {
	return &river.Job[events.PublishArgs]{
		JobRow: &rivertype.JobRow{Attempt: attempt, MaxAttempts: max},
		Args:   events.PublishArgs{EventID: id},
	}
}

func TestPublishDomainEventWorker(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	noms := "A1234BC"
	require.NoError(t, store.CreateDomainEvent(ctx, &domain.DomainEvent{
		ID: "evt-1", CRN: "X1", NomsNumber: &noms, Type: domain.EventCas2ApplicationSubmitted,
		OccurredAt: time.Now().UTC(), Data: `{}`, Service: domain.ServiceCAS2,
	}))

	t.Run("publishes with event type routing key", func(t *testing.T) {
		m := metrics.New()
		pub := &recordingPublisher{}
		w := NewPublishDomainEventWorker(store, pub, "https://cas.example", m)

		require.NoError(t, w.Work(ctx, publishJob("evt-1", 1, 5)))
		require.Equal(t, []string{"applications.cas2.application.submitted"}, pub.keys)
		n := pub.messages[0].(domain.EventNotification)
		assert.Equal(t, "https://cas.example/events/evt-1", n.DetailURL)
		assert.Equal(t, "A1234BC", n.PersonReference.Identifier("NOMS"))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(n.EventType, "ok")))
	})

	t.Run("missing event cancels", func(t *testing.T) {
		w := NewPublishDomainEventWorker(store, &recordingPublisher{}, "", nil)
		err := w.Work(ctx, publishJob("nope", 1, 5))
		var cancel *rivertype.JobCancelError
		assert.ErrorAs(t, err, &cancel)
	})

	t.Run("broker failure retries then discards", func(t *testing.T) {
		m := metrics.New()
		w := NewPublishDomainEventWorker(store, &recordingPublisher{err: errors.New("connection refused")}, "", m)

		assert.Error(t, w.Work(ctx, publishJob("evt-1", 1, 3)))
		assert.Error(t, w.Work(ctx, publishJob("evt-1", 3, 3)))
		typ := string(domain.EventCas2ApplicationSubmitted)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(typ, "retry")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues(typ, "discarded")))
	})
}

func TestSendEmailWorker(t *testing.T) {
	ctx := context.Background()
	job := func(e notification.Email) *river.Job[notification.SendArgs] {
		return &river.Job[notification.SendArgs]{
			JobRow: &rivertype.JobRow{Attempt: 1, MaxAttempts: 3},
			Args:   notification.SendArgs{Email: e},
		}
	}
	valid := notification.Email{
		To: "ann@example.org", Template: notification.TemplateApplicationSubmitted,
		Personalisation: map[string]string{"crn": "X1", "applicationUrl": "u"},
	}

	tests := []struct {
		name       string
		email      notification.Email
		sendErr    error
		wantErr    bool
		wantCancel bool
		wantSent   int
	}{
		{name: "sends", email: valid, wantSent: 1},
		{name: "sender failure retries", email: valid, sendErr: errors.New("503"), wantErr: true},
		{name: "bad template cancels", email: notification.Email{Template: "nope"}, wantErr: true, wantCancel: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{err: tt.sendErr}
			w := NewSendEmailWorker(sender, nil)
			err := w.Work(ctx, job(tt.email))
			if !tt.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				var cancel *rivertype.JobCancelError
				assert.Equal(t, tt.wantCancel, errors.As(err, &cancel))
			}
			assert.Len(t, sender.sent, tt.wantSent)
		})
	}
}

func TestRegister(t *testing.T) {
	workers := river.NewWorkers()
	Register(workers, Deps{Store: memstore.New(), Publisher: &recordingPublisher{}, Sender: &recordingSender{}})
	assert.Len(t, PeriodicJobs(), 1)
}
