package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/convention"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConventionsRepo struct {
	base
}

func NewConventionsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ConventionsRepo {
	return &ConventionsRepo{base{pool: pool, prom: prom}}
}

const conventionColumns = `id, name, type, location, is_online, start_at, finish_at, meta, created_at, updated_at`

func (r *ConventionsRepo) GetByID(ctx context.Context, id int64) (convention.Convention, error) {
	var c convention.Convention

	err := r.observe("conventions.get_by_id", func() error {
		return scanConvention(r.pool.QueryRow(ctx, `SELECT `+conventionColumns+` FROM conventions WHERE id = $1`, id), &c)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return convention.Convention{}, convention.ErrNotFound
		}
		return convention.Convention{}, err
	}
	return c, nil
}

// ListWebinarsBetween returns online conventions starting in [from, to).
func (r *ConventionsRepo) ListWebinarsBetween(ctx context.Context, from, to time.Time) ([]convention.Convention, error) {
	var rows pgx.Rows

	err := r.observe("conventions.list_webinars_between", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
		SELECT `+conventionColumns+`
		FROM conventions
		WHERE is_online
		  AND start_at >= $1
		  AND start_at < $2
		ORDER BY start_at ASC, id ASC
		`, from, to)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]convention.Convention, 0)
	for rows.Next() {
		var c convention.Convention
		if err := scanConvention(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// meta is jsonb; pgx decodes it straight into the struct.
func scanConvention(row pgx.Row, c *convention.Convention) error {
	return row.Scan(
		&c.ID, &c.Name, &c.Type, &c.Location, &c.IsOnline,
		&c.StartAt, &c.FinishAt, &c.Meta, &c.CreatedAt, &c.UpdatedAt,
	)
}
