package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/observability"
)

type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}

type Executor interface {
	Execute(ctx context.Context, id string) (task.Task, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	WorkerID      string
	Concurrency   int
	PollTimeout   time.Duration
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
	return c
}

// Worker runs Concurrency goroutines, each blocking on the queue and handing
// ids to the executor. It never retries a task itself.
type Worker struct {
	cfg     Config
	queue   Dequeuer
	exec    Executor
	log     *slog.Logger
	metrics *observability.TaskMetrics
	deps    []Pinger

	ready atomic.Bool
}

func New(cfg Config, q Dequeuer, exec Executor, log *slog.Logger, metrics *observability.TaskMetrics, deps ...Pinger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewTaskMetrics()
	}
	return &Worker{
		cfg:     cfg.withDefaults(),
		queue:   q,
		exec:    exec,
		log:     log,
		metrics: metrics,
		deps:    deps,
	}
}

// Run blocks until ctx is cancelled and every loop has finished its current
// task, or ShutdownGrace has passed.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker.started", "worker_id", w.cfg.WorkerID, "concurrency", w.cfg.Concurrency)

	// executions outlive ctx so a running task can record its outcome
	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelExec()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, execCtx, slot)
		}(i)
	}

	w.ready.Store(true)
	<-ctx.Done()
	w.ready.Store(false)
	w.log.Info("worker.draining", "worker_id", w.cfg.WorkerID)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("worker.shutdown_grace_exceeded", "grace", w.cfg.ShutdownGrace.String())
		cancelExec()
		<-done
	}

	w.log.Info("worker.stopped", "worker_id", w.cfg.WorkerID)
	return nil
}

func (w *Worker) loop(ctx, execCtx context.Context, slot int) {
	failures := 0

	for ctx.Err() == nil {
		_, err := w.ProcessOne(ctx, execCtx)
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return
		}

		delay := ExponentialBackoff(failures)
		failures++
		w.log.Warn("worker.dequeue_error", "slot", slot, "err", err, "backoff", delay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (w *Worker) Ready() bool { return w.ready.Load() }

func (w *Worker) Metrics() *observability.TaskMetrics { return w.metrics }
