package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

type Kind string

const (
	KindUserWebinarRegistration     Kind = "user_webinar_registration"
	KindExportWebinarVisitors       Kind = "export_webinar_visitors"
	KindRecalculateWebinarStatistic Kind = "recalculate_webinar_statistic"
)

// check to see if the kind is a known constant
func (k Kind) IsValid() bool {
	switch k {
	case KindUserWebinarRegistration, KindExportWebinarVisitors, KindRecalculateWebinarStatistic:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound          = errors.New("task not found")
	ErrAlreadyExists     = errors.New("task already exists")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Task is a durable unit of asynchronous work. Status only moves forward:
// queued -> running -> succeeded|failed.
type Task struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Status    Status          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	ActorID   *string         `json:"actorId,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type CreateRequest struct {
	Kind    Kind
	Payload json.RawMessage
	ActorID *string
}

func New(req CreateRequest) Task {
	now := time.Now().UTC()

	return Task{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Status:    StatusQueued,
		Payload:   req.Payload,
		ActorID:   req.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Task) Start() error {
	if t.Status != StatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusRunning)
	}

	t.Status = StatusRunning
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Task) Succeed(result json.RawMessage) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusSucceeded)
	}

	t.Status = StatusSucceeded
	t.Result = result
	t.Error = nil
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Task) Fail(reason string) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusFailed)
	}

	t.Status = StatusFailed
	t.Result = nil
	t.Error = &reason
	t.UpdatedAt = time.Now().UTC()
	return nil
}
