package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ReadyKey is the Redis list of task ids ready for pickup.
	ReadyKey = "tasks:ready"
	// DelayedKey is the sorted set of task ids scored by their due unix ms.
	DelayedKey = "tasks:delayed"

	promoteBatch = 100
)

var ErrEmpty = errors.New("queue empty")

// Queue hands task ids to workers. Until an id is popped it is kept, and an
// id enqueued twice is delivered twice. After BRPOP there is no ack: an id
// whose worker dies before the executor records it as running is not
// redelivered, so the pop itself is at-most-once.
type Queue struct {
	rdb *redis.Client
	log *slog.Logger
	now func() time.Time
}

func New(rdb *redis.Client, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{rdb: rdb, log: log, now: time.Now}
}

// Enqueue makes id available now, or after delay when delay > 0.
func (q *Queue) Enqueue(ctx context.Context, id string, delay time.Duration) error {
	if delay <= 0 {
		if err := q.rdb.RPush(ctx, ReadyKey, id).Err(); err != nil {
			return fmt.Errorf("rpush: %w", err)
		}
		q.log.DebugContext(ctx, "queue.enqueued", "task_id", id)
		return nil
	}

	due := q.now().Add(delay).UnixMilli()
	if err := q.rdb.ZAdd(ctx, DelayedKey, redis.Z{Score: float64(due), Member: id}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	q.log.DebugContext(ctx, "queue.enqueued_delayed", "task_id", id, "delay", delay.String())
	return nil
}

// Dequeue promotes due delayed ids, then blocks up to timeout for the next
// ready id. It returns ErrEmpty when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	if err := q.promoteDue(ctx); err != nil {
		q.log.WarnContext(ctx, "queue.promote_failed", "err", err)
	}

	res, err := q.rdb.BLPop(ctx, timeout, ReadyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

// promoteDue moves due ids from the delayed set to the ready list. ZREM is
// the claim, so concurrent workers never promote the same id twice.
func (q *Queue) promoteDue(ctx context.Context) error {
	max := strconv.FormatInt(q.now().UnixMilli(), 10)

	ids, err := q.rdb.ZRangeByScore(ctx, DelayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, DelayedKey, id).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.RPush(ctx, ReadyKey, id).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Len reports ready and delayed depth, for readiness and ops.
func (q *Queue) Len(ctx context.Context) (ready, delayed int64, err error) {
	pipe := q.rdb.Pipeline()
	r := pipe.LLen(ctx, ReadyKey)
	d := pipe.ZCard(ctx, DelayedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return r.Val(), d.Val(), nil
}
