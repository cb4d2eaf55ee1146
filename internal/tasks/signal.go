package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/redis/go-redis/v9"
)

const StatusChannel = "tasks:status"

// Signaler is notified on every status transition (queued, running, done).
// Implementations must not block the pipeline; failures are logged and dropped.
type Signaler interface {
	TaskStatusChanged(ctx context.Context, t task.Task)
}

type StatusMessage struct {
	TaskID    string      `json:"taskId"`
	Kind      task.Kind   `json:"kind"`
	Status    task.Status `json:"status"`
	ActorID   *string     `json:"actorId,omitempty"`
	Error     *string     `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func NewStatusMessage(t task.Task) StatusMessage {
	return StatusMessage{
		TaskID:    t.ID,
		Kind:      t.Kind,
		Status:    t.Status,
		ActorID:   t.ActorID,
		Error:     t.Error,
		UpdatedAt: t.UpdatedAt,
	}
}

type LogSignaler struct {
	log *slog.Logger
}

func NewLogSignaler(log *slog.Logger) *LogSignaler {
	if log == nil {
		log = slog.Default()
	}
	return &LogSignaler{log: log}
}

func (s *LogSignaler) TaskStatusChanged(ctx context.Context, t task.Task) {
	s.log.InfoContext(ctx, "task.status_changed",
		"task_id", t.ID,
		"task_kind", t.Kind,
		"status", t.Status,
	)
}

// RedisSignaler publishes status changes for UI pollers/subscribers.
type RedisSignaler struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisSignaler(rdb *redis.Client, log *slog.Logger) *RedisSignaler {
	if log == nil {
		log = slog.Default()
	}
	return &RedisSignaler{rdb: rdb, channel: StatusChannel, log: log}
}

func (s *RedisSignaler) TaskStatusChanged(ctx context.Context, t task.Task) {
	b, err := json.Marshal(NewStatusMessage(t))
	if err != nil {
		s.log.ErrorContext(ctx, "task.signal_encode_failed", "task_id", t.ID, "err", err)
		return
	}

	if err := s.rdb.Publish(ctx, s.channel, b).Err(); err != nil {
		s.log.WarnContext(ctx, "task.signal_publish_failed", "task_id", t.ID, "err", err)
	}
}

// Signalers fans a transition out to several observers.
type Signalers []Signaler

func (ss Signalers) TaskStatusChanged(ctx context.Context, t task.Task) {
	for _, s := range ss {
		if s != nil {
			s.TaskStatusChanged(ctx, t)
		}
	}
}
