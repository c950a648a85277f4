package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

type testJob struct{}

func (testJob) Kind() string { return "test_job" }

func TestInTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u1", DeliusUsername: "ONE"}))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.CreateUser(ctx, &domain.User{ID: "u2", DeliusUsername: "TWO"}))
		require.NoError(t, tx.Enqueue(ctx, testJob{}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetUser(ctx, "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, s.Jobs())

	_, err = s.GetUser(ctx, "u1")
	assert.NoError(t, err)
}

func TestInTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(tx repository.Store) error {
		return tx.InTx(ctx, func(inner repository.Store) error {
			return inner.Enqueue(ctx, testJob{})
		})
	})
	require.NoError(t, err)
	assert.Len(t, s.Jobs(), 1)
}

func TestValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	data := `{"a":1}`
	app := &domain.Application{ID: "a1", Service: domain.ServiceCAS1, Data: &data, AP: &domain.ApprovedPremisesDetails{Status: domain.AppStatusStarted}}
	require.NoError(t, s.CreateApplication(ctx, app))

	app.AP.Status = domain.AppStatusSubmitted
	got, err := s.GetApplication(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AppStatusStarted, got.AP.Status)
	assert.Equal(t, data, *got.Data)
}

func TestFindConflictingBooking(t *testing.T) {
	ctx := context.Background()
	s := New()
	bed := "bed-1"
	require.NoError(t, s.CreateBooking(ctx, &domain.Booking{
		ID: "b1", BedID: &bed,
		ArrivalDate: domain.Date(2026, 5, 1), DepartureDate: domain.Date(2026, 5, 10),
	}))
	require.NoError(t, s.CreateBooking(ctx, &domain.Booking{
		ID: "b2", BedID: &bed,
		ArrivalDate: domain.Date(2026, 6, 1), DepartureDate: domain.Date(2026, 6, 10),
		Cancellation: &domain.Cancellation{ID: "c1"},
	}))

	r := domain.DateRange{Start: domain.Date(2026, 5, 10), End: domain.Date(2026, 6, 5)}
	got, err := s.FindConflictingBooking(ctx, bed, r, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b1", got.ID)

	got, err = s.FindConflictingBooking(ctx, bed, r, "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.CreateNonArrival(ctx, "b1", &domain.NonArrival{ID: "n1", Date: domain.Date(2026, 5, 1)}))
	got, err = s.FindConflictingBooking(ctx, bed, r, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAbandonStaleCas2Applications(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	submitted := now.AddDate(0, -5, 0)

	require.NoError(t, s.CreateCas2Application(ctx, &domain.Cas2Application{ID: "old", CreatedAt: now.AddDate(0, -4, 0)}))
	require.NoError(t, s.CreateCas2Application(ctx, &domain.Cas2Application{ID: "old-submitted", CreatedAt: now.AddDate(0, -6, 0), SubmittedAt: &submitted}))
	require.NoError(t, s.CreateCas2Application(ctx, &domain.Cas2Application{ID: "fresh", CreatedAt: now.AddDate(0, 0, -1)}))

	n, err := s.AbandonStaleCas2Applications(ctx, now.AddDate(0, -3, 0), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetCas2Application(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, got.AbandonedAt)
}
