package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
)

type fakeStore struct {
	created []task.Task
	failed  map[string]string
	err     error
}

func (f *fakeStore) Create(_ context.Context, t task.Task) (task.Task, error) {
	if f.err != nil {
		return task.Task{}, f.err
	}
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id string, reason string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = reason
	return nil
}

type fakeEnqueuer struct {
	ids []string
	err error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, id string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	return nil
}

type fakeSignaler struct{ got []task.Status }

func (f *fakeSignaler) TaskStatusChanged(_ context.Context, t task.Task) {
	f.got = append(f.got, t.Status)
}

func TestSubmit_Order(t *testing.T) {
	store := &fakeStore{}
	q := &fakeEnqueuer{}
	sig := &fakeSignaler{}
	s := NewSubmitter(store, q, sig, nil)

	tk, _ := NewFactory().NewRecalculateWebinarStatistic(nil, 1)

	var hookSawQueue int
	got, err := s.Submit(context.Background(), tk, func(ctx context.Context, t task.Task) error {
		hookSawQueue = len(q.ids)
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.ID != tk.ID || len(store.created) != 1 || len(q.ids) != 1 || q.ids[0] != tk.ID {
		t.Fatalf("unexpected state: %+v %+v", store.created, q.ids)
	}
	if hookSawQueue != 0 {
		t.Fatal("hook must run before enqueue")
	}
	if len(sig.got) != 1 || sig.got[0] != task.StatusQueued {
		t.Fatalf("unexpected signals %v", sig.got)
	}
}

func TestSubmit_Failures(t *testing.T) {
	tk, _ := NewFactory().NewRecalculateWebinarStatistic(nil, 1)

	s := NewSubmitter(&fakeStore{err: errors.New("db down")}, &fakeEnqueuer{}, nil, nil)
	if _, err := s.Submit(context.Background(), tk); err == nil {
		t.Fatal("expected create error")
	}

	q := &fakeEnqueuer{}
	store := &fakeStore{}
	sig := &fakeSignaler{}
	s = NewSubmitter(store, q, sig, nil)
	hookErr := errors.New("link registration task: participation gone")
	got, err := s.Submit(context.Background(), tk, func(context.Context, task.Task) error { return hookErr })
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if len(q.ids) != 0 {
		t.Fatal("enqueued despite hook failure")
	}
	if store.failed[tk.ID] != hookErr.Error() {
		t.Fatalf("task left queued after hook failure: %v", store.failed)
	}
	if got.Status != task.StatusFailed || got.Error == nil {
		t.Fatalf("expected failed task back, got %+v", got)
	}
	if len(sig.got) != 1 || sig.got[0] != task.StatusFailed {
		t.Fatalf("unexpected signals %v", sig.got)
	}

	s = NewSubmitter(&fakeStore{}, &fakeEnqueuer{err: errors.New("redis down")}, nil, nil)
	got, err = s.Submit(context.Background(), tk)
	if err == nil || got.ID != tk.ID {
		t.Fatalf("expected enqueue error with created task, got %+v, %v", got, err)
	}
}
