// Package sqlstore reads reference data and applies seed writes over
// database/sql.
//
// The handle is the pgx stdlib adapter opened on the shared pool, so seed
// runs and the reference read path use the same connections as everything
// else.
//
// Import Path: approvedpremises.io/cas/internal/repository/sqlstore
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is bound to the database or to one transaction.
type Store struct {
	db *sql.DB
	q  DBTX
}

var _ repository.ReferenceDataRepository = (*Store)(nil)

// New creates a database-bound Store.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// InTx runs fn on a transaction-bound Store and commits when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

const referenceColumns = `id, name, service_scope, model_scope, property_name, legacy_delius_code, is_active`

func scanReference(kind domain.ReferenceKind, scan func(dest ...any) error) (domain.ReferenceData, error) {
	r := domain.ReferenceData{Kind: kind}
	err := scan(&r.ID, &r.Name, &r.ServiceScope, &r.ModelScope, &r.PropertyName, &r.LegacyDeliusCode, &r.IsActive)
	return r, err
}

// ListReferenceData returns every row of kind ordered by name.
func (s *Store) ListReferenceData(ctx context.Context, kind domain.ReferenceKind) ([]domain.ReferenceData, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_data WHERE kind = $1 ORDER BY name`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.ReferenceData
	for rows.Next() {
		r, err := scanReference(kind, rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", kind, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetReferenceData(ctx context.Context, kind domain.ReferenceKind, id string) (*domain.ReferenceData, error) {
	r, err := scanReference(kind, s.q.QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_data WHERE kind = $1 AND id = $2`, string(kind), id).Scan)
	if err != nil {
		return nil, notFound(err, "get "+string(kind))
	}
	return &r, nil
}

func (s *Store) GetPostcodeDistrict(ctx context.Context, outcode string) (*domain.PostcodeDistrict, error) {
	var d domain.PostcodeDistrict
	err := s.q.QueryRowContext(ctx, `SELECT id, outcode, latitude, longitude FROM postcode_districts
		WHERE upper(outcode) = upper($1)`, strings.TrimSpace(outcode)).
		Scan(&d.ID, &d.Outcode, &d.Latitude, &d.Longitude)
	if err != nil {
		return nil, notFound(err, "get postcode district")
	}
	return &d, nil
}

// UpsertReferenceData inserts or replaces a row keyed by kind and id.
func (s *Store) UpsertReferenceData(ctx context.Context, r domain.ReferenceData) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO reference_data
		(kind, id, name, service_scope, model_scope, property_name, legacy_delius_code, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, id) DO UPDATE SET
			name = EXCLUDED.name, service_scope = EXCLUDED.service_scope,
			model_scope = EXCLUDED.model_scope, property_name = EXCLUDED.property_name,
			legacy_delius_code = EXCLUDED.legacy_delius_code, is_active = EXCLUDED.is_active`,
		string(r.Kind), r.ID, r.Name, r.ServiceScope, r.ModelScope, r.PropertyName, r.LegacyDeliusCode, r.IsActive)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", r.Kind, r.ID, err)
	}
	return nil
}

// UpsertPostcodeDistrict inserts or replaces a district keyed by outcode.
func (s *Store) UpsertPostcodeDistrict(ctx context.Context, d domain.PostcodeDistrict) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO postcode_districts (id, outcode, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (outcode) DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`,
		d.ID, strings.ToUpper(d.Outcode), d.Latitude, d.Longitude)
	if err != nil {
		return fmt.Errorf("upsert postcode district %s: %w", d.Outcode, err)
	}
	return nil
}

// textArray binds a list as one comma-joined parameter expanded in SQL, so
// the statement works through any database/sql driver. Values never
// contain commas.
func textArray(values []string) string {
	return strings.Join(values, ",")
}

const arrayFromParam = `COALESCE(string_to_array(NULLIF(%s, ''), ','), '{}')`

// UpsertUser inserts a user or replaces its profile and roles, keyed by
// delius username.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO users
		(id, delius_username, name, email, probation_region_id, prison_code, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, `+fmt.Sprintf(arrayFromParam, "$7")+`, $8)
		ON CONFLICT (delius_username) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email,
			probation_region_id = EXCLUDED.probation_region_id,
			prison_code = EXCLUDED.prison_code, roles = EXCLUDED.roles`,
		u.ID, strings.ToUpper(u.DeliusUsername), u.Name, u.Email, u.ProbationRegionID, u.PrisonCode,
		textArray(roles), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.DeliusUsername, err)
	}
	return nil
}

// UpsertPremises inserts or replaces a premises row keyed by id.
func (s *Store) UpsertPremises(ctx context.Context, p domain.Premises) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO premises
		(id, name, service, probation_region_id, postcode, latitude, longitude, ap_code, ap_type, gender,
		 characteristics, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, `+fmt.Sprintf(arrayFromParam, "$11")+`, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, probation_region_id = EXCLUDED.probation_region_id,
			postcode = EXCLUDED.postcode, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			ap_code = EXCLUDED.ap_code, ap_type = EXCLUDED.ap_type, gender = EXCLUDED.gender,
			characteristics = EXCLUDED.characteristics, status = EXCLUDED.status`,
		p.ID, p.Name, string(p.Service), p.ProbationRegionID, p.Postcode, p.Latitude, p.Longitude,
		p.ApCode, string(p.ApType), string(p.Gender), textArray(p.Characteristics), p.Status)
	if err != nil {
		return fmt.Errorf("upsert premises %s: %w", p.ID, err)
	}
	return nil
}

// UpsertBed inserts or replaces a bed row keyed by id.
func (s *Store) UpsertBed(ctx context.Context, b domain.Bed) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO beds (id, premises_id, name, code, characteristics, end_date)
		VALUES ($1, $2, $3, $4, `+fmt.Sprintf(arrayFromParam, "$5")+`, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, code = EXCLUDED.code,
			characteristics = EXCLUDED.characteristics, end_date = EXCLUDED.end_date`,
		b.ID, b.PremisesID, b.Name, b.Code, textArray(b.Characteristics), b.EndDate)
	if err != nil {
		return fmt.Errorf("upsert bed %s: %w", b.ID, err)
	}
	return nil
}

// PremisesExists reports whether a premises row with id exists.
func (s *Store) PremisesExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM premises WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check premises %s: %w", id, err)
	}
	return exists, nil
}
