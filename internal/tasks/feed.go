package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// StatusFeed delivers the transitions published by RedisSignaler, from any
// api or worker instance.
type StatusFeed interface {
	// Subscribe returns a channel that is closed when ctx ends.
	Subscribe(ctx context.Context) (<-chan StatusMessage, error)
}

type RedisStatusFeed struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisStatusFeed(rdb *redis.Client, log *slog.Logger) *RedisStatusFeed {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStatusFeed{rdb: rdb, channel: StatusChannel, log: log}
}

func (f *RedisStatusFeed) Subscribe(ctx context.Context) (<-chan StatusMessage, error) {
	ps := f.rdb.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	out := make(chan StatusMessage, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m StatusMessage
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					f.log.WarnContext(ctx, "task.feed_decode_failed", "err", err)
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
