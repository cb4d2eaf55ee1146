package observability

import (
	"sync/atomic"
	"time"
)

// TaskMetrics are in-process counters the worker exposes on /metrics/tasks,
// alongside the prometheus series.
type TaskMetrics struct {
	dequeued  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewTaskMetrics() *TaskMetrics {
	return &TaskMetrics{}
}

func (m *TaskMetrics) IncDequeued()  { m.dequeued.Add(1) }
func (m *TaskMetrics) IncSucceeded() { m.succeeded.Add(1) }
func (m *TaskMetrics) IncFailed()    { m.failed.Add(1) }

// IncDropped counts ids that could not be executed at all (unknown id,
// already terminal).
func (m *TaskMetrics) IncDropped() { m.dropped.Add(1) }

func (m *TaskMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr {
			return
		}
		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type TaskMetricsSnapshot struct {
	Dequeued        uint64        `json:"dequeued"`
	Succeeded       uint64        `json:"succeeded"`
	Failed          uint64        `json:"failed"`
	Dropped         uint64        `json:"dropped"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

func (m *TaskMetrics) Snapshot() TaskMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return TaskMetricsSnapshot{
		Dequeued:        m.dequeued.Load(),
		Succeeded:       m.succeeded.Load(),
		Failed:          m.failed.Load(),
		Dropped:         m.dropped.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
}
