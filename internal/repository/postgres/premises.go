package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

const premisesColumns = `id, name, service, probation_region_id, postcode, latitude, longitude,
	ap_code, ap_type, gender, characteristics, status`

func scanPremises(row pgx.Row) (*domain.Premises, error) {
	var (
		p                       domain.Premises
		service, apType, gender string
	)
	if err := row.Scan(&p.ID, &p.Name, &service, &p.ProbationRegionID, &p.Postcode, &p.Latitude, &p.Longitude,
		&p.ApCode, &apType, &gender, &p.Characteristics, &p.Status); err != nil {
		return nil, err
	}
	p.Service, p.ApType, p.Gender = domain.ServiceName(service), domain.ApType(apType), domain.Gender(gender)
	return &p, nil
}

func (s *Store) GetPremises(ctx context.Context, id string) (*domain.Premises, error) {
	p, err := scanPremises(s.db.QueryRow(ctx, `SELECT `+premisesColumns+` FROM premises WHERE id = $1`, id))
	return p, one(err, "get premises")
}

func (s *Store) GetBed(ctx context.Context, id string) (*domain.Bed, error) {
	var b domain.Bed
	err := s.db.QueryRow(ctx, `SELECT id, premises_id, name, code, characteristics, end_date
		FROM beds WHERE id = $1`, id).
		Scan(&b.ID, &b.PremisesID, &b.Name, &b.Code, &b.Characteristics, &b.EndDate)
	if err := one(err, "get bed"); err != nil {
		return nil, err
	}
	return &b, nil
}

// SearchPremises returns premises with coordinates matching every filter;
// distance ranking happens in the caller.
func (s *Store) SearchPremises(ctx context.Context, q repository.PremisesSearch) ([]domain.Premises, error) {
	rows, err := s.db.Query(ctx, `SELECT `+premisesColumns+` FROM premises
		WHERE ($1 = '' OR service = $1)
		  AND ($2 = '' OR ap_type = $2)
		  AND ($3 = '' OR gender = $3)
		  AND characteristics @> $4
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY name`,
		string(q.Service), string(q.ApType), string(q.Gender), nonNil(q.Characteristics))
	return collect(rows, err, "search premises", scanPremises)
}
