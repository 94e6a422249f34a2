package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs window counting with Redis sorted sets so counters are
// shared across gateway instances. Each key is a ZSET of event timestamps
// scored by unix nanoseconds.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + ":" + key
}

// Count implements WindowStore. Expired entries are pruned before counting so
// the ZSET never grows past one retention span.
func (s *RedisStore) Count(ctx context.Context, key string, since time.Time) (int64, error) {
	k := s.key(key)
	maxExpired := fmt.Sprintf("(%d", since.UnixNano())

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", maxExpired)
	card := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("counting window events for %s: %w", key, err)
	}
	return card.Val(), nil
}

// Record implements WindowStore. The member carries a uuid suffix so two
// events in the same nanosecond never collapse into one.
func (s *RedisStore) Record(ctx context.Context, key string, at time.Time, retain time.Duration) error {
	k := s.key(key)
	member := fmt.Sprintf("%d-%s", at.UnixNano(), uuid.NewString())

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.Expire(ctx, k, retain+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording window event for %s: %w", key, err)
	}
	return nil
}
