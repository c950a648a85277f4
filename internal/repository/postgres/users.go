package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
)

const userColumns = `id, delius_username, name, email, probation_region_id, prison_code, roles, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		roles []string
	)
	if err := row.Scan(&u.ID, &u.DeliusUsername, &u.Name, &u.Email,
		&u.ProbationRegionID, &u.PrisonCode, &roles, &u.CreatedAt); err != nil {
		return nil, err
	}
	for _, r := range roles {
		u.Roles = append(u.Roles, domain.UserRole(r))
	}
	return &u, nil
}

func roleStrings(roles []domain.UserRole) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, one(err, "get user")
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE upper(delius_username) = upper($1)`, username))
	return u, one(err, "get user by username")
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.DeliusUsername, u.Name, u.Email, u.ProbationRegionID, u.PrisonCode,
		roleStrings(u.Roles), u.CreatedAt)
	return one(err, "create user")
}

func (s *Store) ListUsersWithRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE $1 = ANY (roles) ORDER BY created_at`, string(role))
	return collect(rows, err, "list users with role", scanUser)
}
