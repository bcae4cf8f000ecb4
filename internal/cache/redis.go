// Package cache provides Redis utilities: job run locks, completion markers
// and cache-aside reads for the feed endpoints.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"pulse/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// InitRedis initializes the Redis client with the given address. addr may be
// host:port or a redis:// URL. When Redis is unreachable the client stays nil
// and every cache operation degrades to a no-op.
func InitRedis(addr string) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			observability.GlobalLogger.Warn("invalid REDIS_URL, continuing without cache",
				"addr", addr, "error", err.Error())
			client = nil
			return
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client = redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		observability.GlobalLogger.Warn("Redis connection failed, continuing without cache",
			"error", err.Error())
		_ = client.Close()
		client = nil
	} else {
		observability.GlobalLogger.Info("Redis connected successfully")
	}
}

// GetClient returns the current Redis client instance, or nil.
func GetClient() *redis.Client {
	return client
}

// Close releases the shared client.
func Close() error {
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}
