// Package bootstrap connects the configured stores and assembles the
// services shared by every pulse command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"pulse/internal/cache"
	"pulse/internal/clock"
	"pulse/internal/config"
	"pulse/internal/database"
	"pulse/internal/docstore"
	"pulse/internal/repository"
	"pulse/internal/service"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

// Runtime holds the live connections for one process.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Mongo  *mongo.Client
	Redis  *redis.Client

	Posts repository.PostRepository
	Users repository.UserRepository

	// Checks probe each connected dependency for the health endpoint.
	Checks map[string]func(context.Context) error
}

// InitRuntime connects the store selected by STORE_DRIVER and Redis. Redis
// is optional: when unreachable the runtime carries a nil client and every
// lock and cache operation degrades to a no-op.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{
		Config: cfg,
		Checks: map[string]func(context.Context) error{},
	}

	switch cfg.StoreDriver {
	case "mongo":
		client, err := docstore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("document store connection failed: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := docstore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		rt.Mongo = client
		rt.Posts = docstore.NewPostRepository(db)
		rt.Users = docstore.NewUserRepository(db)
		rt.Checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		rt.DB = db
		rt.Posts = repository.NewPostRepository(db)
		rt.Users = repository.NewUserRepository(db)
		rt.Checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	rt.Redis = cache.GetClient()
	if rt.Redis != nil {
		r := rt.Redis
		rt.Checks["redis"] = func(ctx context.Context) error { return r.Ping(ctx).Err() }
	}

	return rt, nil
}

// EngagementService builds the job runner over this runtime's stores.
func (rt *Runtime) EngagementService(clk clock.Clock) *service.EngagementService {
	return service.NewEngagementService(rt.Posts, rt.Users, clk,
		service.WithLocker(cache.NewRunLock(rt.Redis)),
		service.WithInvalidator(cache.NewJSONCache(rt.Redis)),
		service.WithRules(service.RulesFromConfig(rt.Config)),
		service.WithWorkers(rt.Config.JobWorkers),
	)
}

// FeedService builds the cached read service over this runtime's stores.
func (rt *Runtime) FeedService() *service.FeedService {
	return service.NewFeedService(rt.Posts, rt.Users, cache.NewJSONCache(rt.Redis))
}

// Close releases every connection the runtime opened.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.DB != nil {
		if err := database.Close(rt.DB); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if rt.Mongo != nil {
		if err := rt.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close mongo: %w", err))
		}
	}
	if rt.Redis != nil {
		if err := cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
