package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
)

type TasksRepo struct {
	mu    sync.RWMutex
	items map[string]task.Task
}

func NewTasksRepo() *TasksRepo {
	return &TasksRepo{items: make(map[string]task.Task)}
}

func (r *TasksRepo) Create(_ context.Context, t task.Task) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[t.ID]; ok {
		return task.Task{}, task.ErrAlreadyExists
	}
	r.items[t.ID] = t
	return t, nil
}

func (r *TasksRepo) GetByID(_ context.Context, id string) (task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (r *TasksRepo) MarkRunning(_ context.Context, id string) error {
	return r.mutate(id, func(t *task.Task) {
		t.Status = task.StatusRunning
	})
}

func (r *TasksRepo) MarkSucceeded(_ context.Context, id string, result json.RawMessage) error {
	return r.mutate(id, func(t *task.Task) {
		t.Status = task.StatusSucceeded
		t.Result = result
		t.Error = nil
	})
}

func (r *TasksRepo) MarkFailed(_ context.Context, id string, reason string) error {
	return r.mutate(id, func(t *task.Task) {
		t.Status = task.StatusFailed
		t.Result = nil
		t.Error = &reason
	})
}

func (r *TasksRepo) mutate(id string, fn func(t *task.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return task.ErrNotFound
	}
	fn(&t)
	t.UpdatedAt = time.Now().UTC()
	r.items[id] = t
	return nil
}
