package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/conventionhub/internal/domain/user"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

const userColumns = `id, email, first_name, last_name, middle_name, role,
	work_place, COALESCE(speciality_id, 0), COALESCE(region_id, 0), country_code,
	created_at, updated_at`

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) getOne(ctx context.Context, op, sql string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, sql, arg).Scan(
			&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.MiddleName, &u.Role,
			&u.Profile.WorkPlace, &u.Profile.SpecialityID, &u.Profile.RegionID, &u.Profile.CountryCode,
			&u.CreatedAt, &u.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}
