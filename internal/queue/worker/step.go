package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/geocoder89/conventionhub/internal/queue"
)

// ProcessOne waits for one id and executes it. It reports whether an id was
// taken; the error is only for queue failures, since execution outcomes are
// recorded on the task itself.
func (w *Worker) ProcessOne(ctx, execCtx context.Context) (bool, error) {
	id, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
	if err != nil {
		if errors.Is(err, queue.ErrEmpty) || ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncDequeued()
	start := time.Now()

	t, err := w.exec.Execute(execCtx, id)
	w.metrics.ObserveDuration(time.Since(start))

	switch {
	case err != nil:
		w.metrics.IncDropped()
		w.log.Error("worker.execute_dropped", "task_id", id, "err", err)
	case t.Status == task.StatusFailed:
		w.metrics.IncFailed()
	default:
		w.metrics.IncSucceeded()
	}

	return true, nil
}
