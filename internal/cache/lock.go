package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pulse/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the lock's TTL only while it still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RunLock keeps job runs from overlapping across processes. With a nil
// client every Acquire succeeds, which is correct for a single instance.
type RunLock struct {
	client *redis.Client
}

// NewRunLock returns a RunLock on c.
func NewRunLock(c *redis.Client) *RunLock {
	return &RunLock{client: c}
}

// Acquire tries to take key for ttl. ok is false when another holder has it.
// While held, the lock's TTL is renewed every ttl/3, so a run may outlast
// ttl; ttl only bounds how long a crashed holder blocks others.
// release must be called once the run is over; it is safe to call when ok
// is false.
func (l *RunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	noop := func(context.Context) {}
	if l == nil || l.client == nil {
		return noop, true, nil
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return noop, false, nil
	}

	stop := l.keepAlive(ctx, key, token, ttl)
	var once sync.Once
	release := func(ctx context.Context) {
		once.Do(func() {
			stop()
			_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		})
	}
	return release, true, nil
}

// keepAlive renews key every ttl/3 until the returned func is called or the
// lock is found to belong to someone else.
func (l *RunLock) keepAlive(ctx context.Context, key, token string, ttl time.Duration) func() {
	interval := ttl / 3
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int64()
				if err != nil {
					if ctx.Err() == nil {
						observability.GlobalLogger.Warn("failed to extend run lock", "key", key, "error", err.Error())
					}
					continue
				}
				if n == 0 {
					observability.GlobalLogger.Warn("run lock lost before release", "key", key)
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Completed reports whether key was marked by MarkCompleted.
func (l *RunLock) Completed(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check marker %s: %w", key, err)
	}
	return n > 0, nil
}

// MarkCompleted records key as done for ttl.
func (l *RunLock) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	if l == nil || l.client == nil {
		return nil
	}
	if err := l.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("mark %s completed: %w", key, err)
	}
	return nil
}
