package tasks

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/conventionhub/internal/domain/task"
	"github.com/redis/go-redis/v9"
)

// Needs a scratch Redis: TEST_REDIS_ADDR=127.0.0.1:6379.
func TestRedisStatusFeed_ReceivesSignals(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed := NewRedisStatusFeed(rdb, nil)
	msgs, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	actor := "7"
	tk := task.New(task.CreateRequest{
		Kind:    task.KindExportWebinarVisitors,
		Payload: json.RawMessage(`{}`),
		ActorID: &actor,
	})
	NewRedisSignaler(rdb, nil).TaskStatusChanged(ctx, tk)

	select {
	case m := <-msgs:
		if m.TaskID != tk.ID || m.Status != task.StatusQueued {
			t.Fatalf("unexpected message %+v", m)
		}
		if m.ActorID == nil || *m.ActorID != actor {
			t.Fatalf("actor not carried: %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	cancel()
	for range msgs {
	}
}
