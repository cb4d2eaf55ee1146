package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipationsRepo reads and partially updates convention_participants.
// Every write touches only its own columns; there is no row lock, so a
// registration and a reconciliation racing on one row each keep their fields.
type ParticipationsRepo struct {
	base
}

func NewParticipationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ParticipationsRepo {
	return &ParticipationsRepo{base{pool: pool, prom: prom}}
}

func (r *ParticipationsRepo) Get(ctx context.Context, conventionID, userID int64) (participation.Participation, error) {
	var (
		p     participation.Participation
		stats struct {
			confirm, control, duration, correct *int
			passed                              *bool
			updatedAt                           *time.Time
		}
	)

	err := r.observe("participations.get", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT convention_id, user_id, enabled, personal_access_url, registration_task_id::text,
		       confirm_count, control_count, duration_minutes, test_passed, correct_answer_count,
		       stats_updated_at, created_at, updated_at
		FROM convention_participants
		WHERE convention_id = $1 AND user_id = $2
		`, conventionID, userID).Scan(
			&p.ConventionID, &p.UserID, &p.Enabled, &p.PersonalAccessURL, &p.RegistrationTaskID,
			&stats.confirm, &stats.control, &stats.duration, &stats.passed, &stats.correct,
			&stats.updatedAt, &p.CreatedAt, &p.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return participation.Participation{}, participation.ErrNotFound
		}
		return participation.Participation{}, err
	}

	if stats.updatedAt != nil {
		p.Stats = &participation.Stats{
			ConfirmCount:       deref(stats.confirm),
			ControlCount:       deref(stats.control),
			DurationMinutes:    deref(stats.duration),
			TestPassed:         stats.passed,
			CorrectAnswerCount: stats.correct,
			UpdatedAt:          stats.updatedAt,
		}
	}
	return p, nil
}

func (r *ParticipationsRepo) IsEnabledParticipant(ctx context.Context, conventionID, userID int64) (bool, error) {
	var ok bool

	err := r.observe("participations.is_enabled", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM convention_participants
			WHERE convention_id = $1 AND user_id = $2 AND enabled
		)`, conventionID, userID).Scan(&ok)
	})
	return ok, err
}

func (r *ParticipationsRepo) SetAccessURL(ctx context.Context, conventionID, userID int64, url string) error {
	return r.update(ctx, "participations.set_access_url", `
		UPDATE convention_participants
		SET personal_access_url = $3,
		    updated_at = NOW()
		WHERE convention_id = $1 AND user_id = $2
	`, conventionID, userID, url)
}

func (r *ParticipationsRepo) SetRegistrationTask(ctx context.Context, conventionID, userID int64, taskID string) error {
	return r.update(ctx, "participations.set_registration_task", `
		UPDATE convention_participants
		SET registration_task_id = $3,
		    updated_at = NOW()
		WHERE convention_id = $1 AND user_id = $2
	`, conventionID, userID, taskID)
}

// UpsertStats overwrites the reconciled fields. enabled, the access url and
// the task back-reference are not in the SET list.
func (r *ParticipationsRepo) UpsertStats(ctx context.Context, conventionID, userID int64, s participation.Stats) error {
	return r.update(ctx, "participations.upsert_stats", `
		UPDATE convention_participants
		SET confirm_count = $3,
		    control_count = $4,
		    duration_minutes = $5,
		    test_passed = $6,
		    correct_answer_count = $7,
		    stats_updated_at = NOW(),
		    updated_at = NOW()
		WHERE convention_id = $1 AND user_id = $2
	`, conventionID, userID, s.ConfirmCount, s.ControlCount, s.DurationMinutes, s.TestPassed, s.CorrectAnswerCount)
}

// ListVisitors returns enabled participants that have reconciled stats,
// most confirmations first.
func (r *ParticipationsRepo) ListVisitors(ctx context.Context, conventionID int64) ([]participation.Visitor, error) {
	var rows pgx.Rows

	err := r.observe("participations.list_visitors", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
		SELECT p.user_id, u.email,
		       COALESCE(p.confirm_count, 0), COALESCE(p.control_count, 0), COALESCE(p.duration_minutes, 0),
		       p.test_passed, p.correct_answer_count, p.stats_updated_at
		FROM convention_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.convention_id = $1
		  AND p.enabled
		  AND p.stats_updated_at IS NOT NULL
		ORDER BY p.confirm_count ASC, p.user_id ASC
		`, conventionID)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]participation.Visitor, 0)
	for rows.Next() {
		var v participation.Visitor
		if err := rows.Scan(
			&v.UserID, &v.Email,
			&v.Stats.ConfirmCount, &v.Stats.ControlCount, &v.Stats.DurationMinutes,
			&v.Stats.TestPassed, &v.Stats.CorrectAnswerCount, &v.Stats.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, rows.Err()
}

func (r *ParticipationsRepo) update(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		// registration_task_id must point at an existing task
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", task.ErrNotFound, err)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return participation.ErrNotFound
	}
	return nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
