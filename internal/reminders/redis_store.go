package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dueKey      = "reminders:due"
	payloadsKey = "reminders:payloads"
)

// RedisStore keeps ids in a sorted set scored by due unix seconds and the
// entries in a hash. ZREM decides which dispatcher owns an entry.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Add(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, payloadsKey, e.ID, b)
		p.ZAdd(ctx, dueKey, redis.Z{Score: float64(e.DueAt.Unix()), Member: e.ID})
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, id string) (bool, error) {
	removed, err := s.rdb.ZRem(ctx, dueKey, id).Result()
	if err != nil {
		return false, err
	}
	if err := s.rdb.HDel(ctx, payloadsKey, id).Err(); err != nil {
		return removed > 0, err
	}
	return removed > 0, nil
}

func (s *RedisStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		removed, err := s.rdb.ZRem(ctx, dueKey, id).Result()
		if err != nil {
			return out, err
		}
		if removed == 0 {
			continue // claimed by another dispatcher
		}

		raw, err := s.rdb.HGet(ctx, payloadsKey, id).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return out, err
		}
		_ = s.rdb.HDel(ctx, payloadsKey, id).Err()

		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return out, fmt.Errorf("decode reminder %s: %w", id, err)
		}
		out = append(out, e)
	}
	return out, nil
}
