package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/messaging"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/service"
)

type fakeRecorder struct {
	got      []service.AllocationChange
	recorded bool
	err      error
}

func (f *fakeRecorder) RecordAllocationChange(_ context.Context, c service.AllocationChange) (bool, error) {
	f.got = append(f.got, c)
	return f.recorded, f.err
}

const validBody = `{
  "eventType": "offender-management.allocation.changed",
  "personReference": {"identifiers": [{"type": "CRN", "value": "X1"}, {"type": "NOMS", "value": "A1234BC"}]},
  "additionalInformation": {"prisonId": "LEI", "pomUsername": "pom9"}
}`

func newTestRouter(rec *fakeRecorder, m *metrics.Metrics) *Router {
	r := NewRouter(m)
	r.Register(AllocationChangedType, NewAllocationHandler(rec, m).HandleEvent)
	return r
}

func TestRouter_Allocation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		recorder *fakeRecorder
		want     messaging.Disposition
		calls    int
		outcome  string
	}{
		{"recorded", validBody, &fakeRecorder{recorded: true}, messaging.Ack, 1, "recorded"},
		{"unknown noms", validBody, &fakeRecorder{}, messaging.Ack, 1, "ignored"},
		{"handler error", validBody, &fakeRecorder{err: errors.New("db down")}, messaging.Reject, 1, "error"},
		{"no noms", `{"eventType":"offender-management.allocation.changed","personReference":{"identifiers":[]},"additionalInformation":{"prisonId":"LEI"}}`, &fakeRecorder{}, messaging.Reject, 0, "malformed"},
		{"routing key fallback", `{"personReference":{"identifiers":[{"type":"NOMS","value":"A1"}]},"additionalInformation":{"prisonId":"LEI"}}`, &fakeRecorder{recorded: true}, messaging.Ack, 1, "recorded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			got := newTestRouter(tt.recorder, m).Handle(context.Background(), AllocationChangedType, []byte(tt.body))
			assert.Equal(t, tt.want, got)
			require.Len(t, tt.recorder.got, tt.calls)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues(AllocationChangedType, tt.outcome)))
		})
	}
}

func TestRouter_NotJSON(t *testing.T) {
	m := metrics.New()
	rec := &fakeRecorder{}
	got := newTestRouter(rec, m).Handle(context.Background(), "some.key", []byte(`{`))
	assert.Equal(t, messaging.Reject, got)
	assert.Empty(t, rec.got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues("some.key", "malformed")))
}

func TestRouter_UnhandledTypeIsAcked(t *testing.T) {
	m := metrics.New()
	rec := &fakeRecorder{}
	const released = "prison-offender-events.prisoner.released"
	got := newTestRouter(rec, m).Handle(context.Background(), released, []byte(`{"eventType":"`+released+`"}`))
	assert.Equal(t, messaging.Ack, got)
	assert.Empty(t, rec.got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues(released, "unhandled")))
}

func TestParseAllocation(t *testing.T) {
	var ev domain.EventNotification
	require.NoError(t, json.Unmarshal([]byte(validBody), &ev))
	c, err := parseAllocation(&ev)
	require.NoError(t, err)
	assert.Equal(t, service.AllocationChange{NomsNumber: "A1234BC", PrisonCode: "LEI", PomUsername: "pom9"}, c)

	ev.EventType = "other"
	_, err = parseAllocation(&ev)
	assert.ErrorIs(t, err, errMalformed)
}
