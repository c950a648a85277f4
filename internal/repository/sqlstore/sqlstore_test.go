package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

var referenceCols = []string{"id", "name", "service_scope", "model_scope", "property_name", "legacy_delius_code", "is_active"}

func TestListReferenceData(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM reference_data WHERE kind = \$1 ORDER BY name`).
		WithArgs("departure-reasons").
		WillReturnRows(sqlmock.NewRows(referenceCols).
			AddRow("d1", "Absconded", "*", "", "", "A", true).
			AddRow("d2", "Recalled", "approved-premises", "", "", "R", false))

	got, err := s.ListReferenceData(context.Background(), domain.KindDepartureReasons)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.KindDepartureReasons, got[0].Kind)
	assert.Equal(t, "A", got[0].LegacyDeliusCode)
	assert.False(t, got[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReferenceData(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM reference_data WHERE kind = \$1 AND id = \$2`).
			WithArgs("cancellation-reasons", "c1").
			WillReturnRows(sqlmock.NewRows(referenceCols).AddRow("c1", "Error in booking", "*", "", "", "", true))

		got, err := s.GetReferenceData(ctx, domain.KindCancellationReasons, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Error in booking", got.Name)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM reference_data`).
			WithArgs("cancellation-reasons", "nope").
			WillReturnRows(sqlmock.NewRows(referenceCols))

		_, err := s.GetReferenceData(ctx, domain.KindCancellationReasons, "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM reference_data`).
			WithArgs("cancellation-reasons", "c1").
			WillReturnError(assert.AnError)

		_, err := s.GetReferenceData(ctx, domain.KindCancellationReasons, "c1")
		assert.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, repository.ErrNotFound)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPostcodeDistrict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT id, outcode, latitude, longitude FROM postcode_districts`).
		WithArgs("SW1A").
		WillReturnRows(sqlmock.NewRows([]string{"id", "outcode", "latitude", "longitude"}).
			AddRow("pd1", "SW1A", 51.501, -0.141))

	got, err := s.GetPostcodeDistrict(context.Background(), " SW1A ")
	require.NoError(t, err)
	assert.InDelta(t, 51.501, got.Latitude, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUser_JoinsRoles(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u1", "JBLOGGS", "Joe Bloggs", "joe@example.com", nil, nil, "CAS1_ASSESSOR,CAS1_MATCHER", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertUser(context.Background(), domain.User{
		ID: "u1", DeliusUsername: "jbloggs", Name: "Joe Bloggs", Email: "joe@example.com",
		Roles: []domain.UserRole{domain.RoleCAS1Assessor, domain.RoleCAS1Matcher}, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reference_data`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(tx *Store) error {
		require.NoError(t, tx.UpsertReferenceData(context.Background(), domain.ReferenceData{
			Kind: domain.KindCharacteristics, ID: "c1", Name: "Lift", ServiceScope: "*", IsActive: true,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_Commits(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`INSERT INTO beds`).
		WithArgs("b1", "p1", "Room 1", "R1", "isSingle", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx *Store) error {
		ok, err := tx.PremisesExists(context.Background(), "p1")
		if err != nil || !ok {
			return errors.New("premises missing")
		}
		return tx.UpsertBed(context.Background(), domain.Bed{
			ID: "b1", PremisesID: "p1", Name: "Room 1", Code: "R1", Characteristics: []string{"isSingle"},
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
