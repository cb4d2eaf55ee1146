package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
)

// Store is the part of the task store the submitter writes to. MarkFailed
// closes a task whose onCreated hook failed.
type Store interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	MarkFailed(ctx context.Context, id string, reason string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, id string, delay time.Duration) error
}

// Submitter persists a new task, announces it as queued and hands its id
// to the queue. If enqueueing fails the task stays queued in the store and
// the error is returned to the caller. If an onCreated hook fails the task
// is never enqueued and ends as failed.
type Submitter struct {
	store  Store
	queue  Enqueuer
	signal Signaler
	log    *slog.Logger
}

func NewSubmitter(store Store, queue Enqueuer, signal Signaler, log *slog.Logger) *Submitter {
	if signal == nil {
		signal = Signalers{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{store: store, queue: queue, signal: signal, log: log}
}

// Submit runs onCreated (if any) between persisting and enqueueing, so
// back-references exist before a worker can pick the task up.
func (s *Submitter) Submit(ctx context.Context, t task.Task, onCreated ...func(ctx context.Context, t task.Task) error) (task.Task, error) {
	created, err := s.store.Create(ctx, t)
	if err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}

	for _, fn := range onCreated {
		if err := fn(ctx, created); err != nil {
			return s.abandon(ctx, created, err), err
		}
	}

	s.signal.TaskStatusChanged(ctx, created)

	if err := s.queue.Enqueue(ctx, created.ID, 0); err != nil {
		s.log.ErrorContext(ctx, "task.enqueue_failed", "task_id", created.ID, "task_kind", created.Kind, "err", err)
		return created, fmt.Errorf("enqueue task: %w", err)
	}

	s.log.InfoContext(ctx, "task.queued", "task_id", created.ID, "task_kind", created.Kind)
	return created, nil
}

// abandon walks a task that will never be enqueued through running to
// failed, so it does not sit in the store as queued.
func (s *Submitter) abandon(ctx context.Context, t task.Task, cause error) task.Task {
	reason := cause.Error()
	if err := s.store.MarkFailed(ctx, t.ID, reason); err != nil {
		s.log.ErrorContext(ctx, "task.abandon_failed", "task_id", t.ID, "task_kind", t.Kind, "err", err, "cause", cause)
		return t
	}

	_ = t.Start()
	_ = t.Fail(reason)
	s.signal.TaskStatusChanged(ctx, t)
	s.log.WarnContext(ctx, "task.abandoned", "task_id", t.ID, "task_kind", t.Kind, "err", cause)
	return t
}
