package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
	"approvedpremises.io/cas/internal/testutil"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	pool := testutil.OpenPGXPool(t, t.Name())
	require.NoError(t, Migrate(context.Background(), pool))
	return New(pool)
}

func seedUser(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &domain.User{
		ID: id, DeliusUsername: "USER-" + id, Roles: []domain.UserRole{domain.RoleCAS1Assessor},
		CreatedAt: time.Now().UTC(),
	}))
}

func seedPremises(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.db.Exec(ctx, `INSERT INTO premises (id, name, service, latitude, longitude, ap_type, gender, characteristics)
		VALUES ('p1', 'Alpha House', 'approved-premises', 51.5, -0.1, 'normal', 'male', '{isCatered,hasLift}'),
		       ('p2', 'Beta House', 'approved-premises', NULL, NULL, 'normal', 'male', '{}')`)
	require.NoError(t, err)
	_, err = s.db.Exec(ctx, `INSERT INTO beds (id, premises_id, name) VALUES ('bed-1', 'p1', 'Room 1')`)
	require.NoError(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	pool := testutil.OpenPGXPool(t, t.Name())
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool))
}

func TestApplication_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedUser(t, s, "u1")

	// Key order and whitespace must survive storage.
	data := `{"z": 1, "a": {"nested": true}}`
	app := &domain.Application{
		ID: "app-1", Service: domain.ServiceCAS1, CRN: "X320741", Data: &data, SchemaVersion: "v1",
		CreatedByUserID: "u1", CreatedAt: time.Now().UTC(),
		AP: &domain.ApprovedPremisesDetails{ApType: domain.ApTypePIPE, Status: domain.AppStatusStarted},
	}
	require.NoError(t, s.CreateApplication(ctx, app))

	got, err := s.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, got.AP)
	assert.Equal(t, data, *got.Data)
	assert.Nil(t, got.Document)
	assert.Equal(t, domain.ApTypePIPE, got.AP.ApType)
	assert.Equal(t, domain.AppStatusStarted, got.AP.Status)
	assert.Nil(t, got.TA)

	_, err = s.GetApplication(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.CreateUser(ctx, &domain.User{ID: "u2", DeliusUsername: "TWO", CreatedAt: time.Now().UTC()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetUser(ctx, "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnqueue_WithoutClientFails(t *testing.T) {
	s := newStore(t)
	err := s.Enqueue(context.Background(), testArgs{})
	assert.Error(t, err)
}

type testArgs struct{}

func (testArgs) Kind() string { return "test_args" }

func TestUsers_LookupByUsernameAndRole(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedUser(t, s, "u1")

	got, err := s.GetUserByUsername(ctx, "user-u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	users, err := s.ListUsersWithRole(ctx, domain.RoleCAS1Assessor)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestBookings_ConflictIgnoresCancelled(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedPremises(t, s)
	bed := "bed-1"
	now := time.Now().UTC()

	mk := func(id string, from, to time.Time) {
		require.NoError(t, s.CreateBooking(ctx, &domain.Booking{
			ID: id, Service: domain.ServiceCAS1, PremisesID: "p1", BedID: &bed, CRN: "X1",
			ArrivalDate: from, DepartureDate: to, OriginalArrivalDate: from, OriginalDepartureDate: to,
			CreatedAt: now,
		}))
	}
	mk("b1", domain.Date(2026, 5, 1), domain.Date(2026, 5, 10))
	mk("b2", domain.Date(2026, 6, 1), domain.Date(2026, 6, 10))
	require.NoError(t, s.CreateCancellation(ctx, "b2", &domain.Cancellation{
		ID: "c1", Date: domain.Date(2026, 5, 20), ReasonID: "r1", CreatedAt: now,
	}))

	r := domain.DateRange{Start: domain.Date(2026, 5, 10), End: domain.Date(2026, 6, 5)}
	got, err := s.FindConflictingBooking(ctx, bed, r, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b1", got.ID)

	got, err = s.FindConflictingBooking(ctx, bed, r, "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	b2, err := s.GetBooking(ctx, "b2")
	require.NoError(t, err)
	require.NotNil(t, b2.Cancellation)
	assert.True(t, b2.IsCancelled())

	require.NoError(t, s.CreateNonArrival(ctx, "b1", &domain.NonArrival{
		ID: "n1", Date: domain.Date(2026, 5, 1), ReasonID: "r2", CreatedAt: now,
	}))
	got, err = s.FindConflictingBooking(ctx, bed, r, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBookings_SubStatesLoaded(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedPremises(t, s)
	now := time.Now().UTC()
	from, to := domain.Date(2026, 7, 1), domain.Date(2026, 7, 14)

	require.NoError(t, s.CreateBooking(ctx, &domain.Booking{
		ID: "b1", Service: domain.ServiceCAS3, PremisesID: "p1", CRN: "X1",
		ArrivalDate: from, DepartureDate: to, OriginalArrivalDate: from, OriginalDepartureDate: to, CreatedAt: now,
	}))
	require.NoError(t, s.CreateArrival(ctx, "b1", &domain.Arrival{ID: "a1", ArrivalDate: from, ExpectedDepartureDate: to, CreatedAt: now}))
	require.NoError(t, s.CreateExtension(ctx, "b1", &domain.Extension{ID: "e1", PreviousDepartureDate: to, NewDepartureDate: to.AddDate(0, 0, 7), CreatedAt: now}))

	list, err := s.ListBookingsForPremises(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Arrival)
	assert.Len(t, list[0].Extensions, 1)
	assert.Nil(t, list[0].Departure)
}

func TestSearchPremises_RequiresCoordinatesAndCharacteristics(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedPremises(t, s)

	got, err := s.SearchPremises(ctx, repository.PremisesSearch{Service: domain.ServiceCAS1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	got, err = s.SearchPremises(ctx, repository.PremisesSearch{Characteristics: []string{"hasLift"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.SearchPremises(ctx, repository.PremisesSearch{Characteristics: []string{"hasLift", "isArsonSuitable"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCas2_AssignmentsAndAbandon(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedUser(t, s, "pom")
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	prison := "LEI"

	require.NoError(t, s.CreateCas2Application(ctx, &domain.Cas2Application{
		ID: "c1", CRN: "X1", NomsNumber: "A1234BC", CreatedByUserID: "pom", SchemaVersion: "v1",
		CreatedAt: now.AddDate(0, -4, 0), ReferringPrisonCode: &prison,
	}))
	require.NoError(t, s.CreateCas2Application(ctx, &domain.Cas2Application{
		ID: "c2", CRN: "X1", NomsNumber: "A1234BC", CreatedByUserID: "pom", SchemaVersion: "v1",
		CreatedAt: now.AddDate(0, 0, -1),
	}))
	require.NoError(t, s.CreateCas2Assignment(ctx, &domain.Cas2ApplicationAssignment{
		ID: "as1", ApplicationID: "c1", PrisonCode: "BMI", CreatedAt: now,
	}))

	got, err := s.GetCas2Application(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "BMI", got.CurrentPrisonCode())

	byPrison, err := s.ListCas2Applications(ctx, repository.Cas2Filter{PrisonCode: "BMI"})
	require.NoError(t, err)
	require.Len(t, byPrison, 1)
	assert.Equal(t, "c1", byPrison[0].ID)

	latest, err := s.LatestCas2ApplicationByNoms(ctx, "A1234BC")
	require.NoError(t, err)
	assert.Equal(t, "c2", latest.ID)

	n, err := s.AbandonStaleCas2Applications(ctx, now.AddDate(0, -3, 0), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCas2_ForUpdateNeedsTransaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedUser(t, s, "pom")
	require.NoError(t, s.CreateCas2Application(ctx, &domain.Cas2Application{
		ID: "c1", CRN: "X1", NomsNumber: "A1", CreatedByUserID: "pom", SchemaVersion: "v1", CreatedAt: time.Now().UTC(),
	}))

	_, err := s.GetCas2ApplicationForUpdate(ctx, "c1")
	assert.Error(t, err)

	err = s.InTx(ctx, func(tx repository.Store) error {
		app, err := tx.GetCas2ApplicationForUpdate(ctx, "c1")
		if err != nil {
			return err
		}
		assert.Equal(t, "c1", app.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestDomainEvents_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)
	body := `{"id":"e1","eventType":"approved-premises.booking.made"}`

	require.NoError(t, s.CreateDomainEvent(ctx, &domain.DomainEvent{
		ID: "e1", CRN: "X1", Type: domain.EventBookingMade, OccurredAt: now, CreatedAt: now,
		Data: body, Service: domain.ServiceCAS1,
	}))
	got, err := s.GetDomainEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, body, got.Data)
	assert.Equal(t, domain.EventBookingMade, got.Type)
	assert.True(t, now.Equal(got.OccurredAt))
}
