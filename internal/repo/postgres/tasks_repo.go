package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TasksRepo persists tasks. Status updates are keyed by id only: a queue
// that delivers the same id twice can have two workers move it to running.
type TasksRepo struct {
	base
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{base{pool: pool, prom: prom}}
}

const taskColumns = `id, kind, status, payload, actor_id, result, error, created_at, updated_at`

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.observe("tasks.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, t.ID, string(t.Kind), string(t.Status), []byte(t.Payload), t.ActorID,
			nullableJSON(t.Result), t.Error, t.CreatedAt, t.UpdatedAt)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return task.Task{}, fmt.Errorf("%w: %s", task.ErrAlreadyExists, t.ID)
		}
		return task.Task{}, err
	}
	return t, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.get_by_id", func() error {
		return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id), &t)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

func (r *TasksRepo) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, "tasks.mark_running", `
		UPDATE tasks
		SET status = 'running',
		    updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *TasksRepo) MarkSucceeded(ctx context.Context, id string, result json.RawMessage) error {
	return r.update(ctx, "tasks.mark_succeeded", `
		UPDATE tasks
		SET status = 'succeeded',
		    result = $2,
		    error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, nullableJSON(result))
}

func (r *TasksRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.update(ctx, "tasks.mark_failed", `
		UPDATE tasks
		SET status = 'failed',
		    result = NULL,
		    error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, reason)
}

func (r *TasksRepo) update(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row, t *task.Task) error {
	var (
		kind, status    string
		payload, result []byte
	)

	if err := row.Scan(
		&t.ID, &kind, &status, &payload, &t.ActorID,
		&result, &t.Error, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return err
	}

	t.Kind = task.Kind(kind)
	t.Status = task.Status(status)
	t.Payload = payload
	if len(result) > 0 {
		t.Result = result
	}
	return nil
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
