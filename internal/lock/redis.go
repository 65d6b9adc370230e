package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/cinex-booking/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "cinex:lock:"
	defaultLockTTL   = 30 * time.Second
	defaultRetryWait = 25 * time.Millisecond
)

// Deletes the lock only while it still carries the owner's token.
var releaseLockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker shares locks between processes through SET NX with an expiry.
// The expiry bounds how long a crashed holder can block others.
type RedisLocker struct {
	client    redis.UniversalClient
	logger    *slog.Logger
	timeout   time.Duration
	ttl       time.Duration
	retryWait time.Duration
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithRetryWait(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.retryWait = d }
}

func NewRedisLocker(client redis.UniversalClient, logger *slog.Logger, timeout time.Duration, opts ...RedisOption) *RedisLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	l := &RedisLocker{
		client:    client,
		logger:    logger,
		timeout:   timeout,
		ttl:       defaultLockTTL,
		retryWait: defaultRetryWait,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func redisLockKey(key string) string {
	return redisKeyPrefix + key
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}

		if ok {
			break
		}

		if !time.Now().Add(l.retryWait).Before(deadline) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; the release must still run.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
			defer cancel()

			err := releaseLockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
			if err != nil {
				l.logger.Error("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}
