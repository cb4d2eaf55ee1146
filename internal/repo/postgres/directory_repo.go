package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepo resolves the reference names shown in visitor listings.
// Unknown ids resolve to "".
type DirectoryRepo struct {
	base
}

func NewDirectoryRepo(pool *pgxpool.Pool, prom *observability.Prom) *DirectoryRepo {
	return &DirectoryRepo{base{pool: pool, prom: prom}}
}

func (r *DirectoryRepo) SpecialityName(ctx context.Context, id int) (string, error) {
	if id <= 0 {
		return "", nil
	}
	return r.name(ctx, "directory.speciality_name", `SELECT name FROM specialities WHERE id = $1`, id)
}

func (r *DirectoryRepo) RegionName(ctx context.Context, countryCode string, id int) (string, error) {
	if id <= 0 || countryCode == "" {
		return "", nil
	}
	return r.name(ctx, "directory.region_name", `SELECT name FROM regions WHERE country_code = $1 AND id = $2`, countryCode, id)
}

func (r *DirectoryRepo) name(ctx context.Context, op, sql string, args ...any) (string, error) {
	var name string
	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, sql, args...).Scan(&name)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}
