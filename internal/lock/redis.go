package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultRetryInterval = 20 * time.Millisecond

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX so several API instances
// share one lock per key. The TTL bounds how long a crashed holder blocks
// others.
type RedisLocker struct {
	client        *redis.Client
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	logger        zerolog.Logger
}

// NewRedisLocker builds a Redis-backed locker.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLocker{
		client:        client,
		prefix:        prefix,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
		logger:        logger.With().Str("component", "redis_locker").Logger(),
	}
}

// Acquire polls SET NX until the key is free or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.redisKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Str("key", redisKey).Msg("failed to release lock")
			}
		})
	}, nil
}

func (l *RedisLocker) redisKey(key string) string {
	return l.prefix + ":" + key
}
