package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "groupledger:lock:"

// RedisOptions configures RedisLocker.
type RedisOptions struct {
	// Expiry is how long a lock survives a crashed holder.
	Expiry time.Duration

	// Tries is the number of acquisition attempts before giving up.
	Tries int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// DefaultRedisOptions returns options suited to short group mutations.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 50 * time.Millisecond,
	}
}

// RedisLocker is a distributed Locker backed by redsync, for running several
// server instances against one store.
type RedisLocker struct {
	rs   *redsync.Redsync
	opts RedisOptions
}

// NewRedisLocker builds a RedisLocker on an existing client.
func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	return &RedisLocker{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}
}

// Lock acquires the redsync mutex for key.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := r.rs.NewMutex(
		keyPrefix+key,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return func() {
		// The caller's context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			slog.Warn("failed to release lock", "key", key, "ok", ok, "error", err)
		}
	}, nil
}
