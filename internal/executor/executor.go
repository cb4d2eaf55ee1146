package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/observability"
	"github.com/geocoder89/conventionhub/internal/tasks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrNoHandler      = errors.New("no handler registered for task kind")
	ErrAlreadyHandled = errors.New("task is not queued")
)

// Store is the subset of the task store the executor mutates.
type Store interface {
	GetByID(ctx context.Context, id string) (task.Task, error)
	MarkRunning(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id string, result json.RawMessage) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// Handler performs one kind of task and returns its JSON result.
type Handler interface {
	Handle(ctx context.Context, t task.Task) (json.RawMessage, error)
}

type HandlerFunc func(ctx context.Context, t task.Task) (json.RawMessage, error)

func (f HandlerFunc) Handle(ctx context.Context, t task.Task) (json.RawMessage, error) {
	return f(ctx, t)
}

// Executor runs a task id once: queued -> running -> succeeded|failed.
// It never retries; a handler error only ends the task as failed.
type Executor struct {
	store    Store
	handlers map[task.Kind]Handler
	signal   tasks.Signaler
	log      *slog.Logger
	prom     *observability.Prom
}

func New(store Store, signal tasks.Signaler, log *slog.Logger, prom *observability.Prom) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if signal == nil {
		signal = tasks.Signalers{}
	}
	return &Executor{
		store:    store,
		handlers: make(map[task.Kind]Handler),
		signal:   signal,
		log:      log,
		prom:     prom,
	}
}

// Register binds h to k. Call before the worker starts.
func (e *Executor) Register(k task.Kind, h Handler) {
	e.handlers[k] = h
}

// Execute returns the task in its final state. The error is non-nil only
// when the task could not be run at all: unknown id, not queued, or a store
// failure while recording a transition.
func (e *Executor) Execute(ctx context.Context, id string) (task.Task, error) {
	ctx = observability.WithTaskID(ctx, id)
	ctx, span := observability.Tracer().Start(ctx, "task.execute")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", id))

	t, err := e.store.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return task.Task{}, fmt.Errorf("load task %s: %w", id, err)
	}
	span.SetAttributes(attribute.String("task.kind", string(t.Kind)))

	log := e.log.With("task_id", t.ID, "task_kind", t.Kind)

	if err := t.Start(); err != nil {
		log.WarnContext(ctx, "task.skip_not_queued", "status", t.Status)
		return t, fmt.Errorf("%w: %v", ErrAlreadyHandled, err)
	}
	if err := e.store.MarkRunning(ctx, t.ID); err != nil {
		span.RecordError(err)
		return t, fmt.Errorf("mark running: %w", err)
	}
	e.signal.TaskStatusChanged(ctx, t)
	log.InfoContext(ctx, "task.running")

	start := time.Now()
	e.inFlight(1)
	result, herr := e.dispatch(ctx, t)
	e.inFlight(-1)
	dur := time.Since(start)

	if herr != nil {
		reason := herr.Error()
		_ = t.Fail(reason)
		span.RecordError(herr)
		span.SetStatus(codes.Error, reason)

		if err := e.store.MarkFailed(ctx, t.ID, reason); err != nil {
			return t, fmt.Errorf("mark failed: %w", err)
		}
		e.observe(t.Kind, "failed", dur)
		e.signal.TaskStatusChanged(ctx, t)
		log.ErrorContext(ctx, "task.failed", "err", herr, "duration_ms", dur.Milliseconds())
		return t, nil
	}

	_ = t.Succeed(result)
	if err := e.store.MarkSucceeded(ctx, t.ID, result); err != nil {
		return t, fmt.Errorf("mark succeeded: %w", err)
	}
	e.observe(t.Kind, "succeeded", dur)
	e.signal.TaskStatusChanged(ctx, t)
	log.InfoContext(ctx, "task.succeeded", "duration_ms", dur.Milliseconds())
	return t, nil
}

func (e *Executor) dispatch(ctx context.Context, t task.Task) (result json.RawMessage, err error) {
	h, ok := e.handlers[t.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, t.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h.Handle(ctx, t)
}

func (e *Executor) observe(k task.Kind, result string, d time.Duration) {
	if e.prom == nil {
		return
	}
	e.prom.TaskResults.WithLabelValues(string(k), result).Inc()
	e.prom.TaskDuration.WithLabelValues(string(k), result).Observe(d.Seconds())
}

func (e *Executor) inFlight(delta float64) {
	if e.prom != nil {
		e.prom.TasksInFlight.Add(delta)
	}
}
