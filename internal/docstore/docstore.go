// Package docstore implements the repository interfaces on MongoDB, storing
// posts and users as camelCase documents in the posts and users collections.
package docstore

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/observability"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	PostsCollection = "posts"
	UsersCollection = "users"
)

// Connect opens a client against uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	observability.GlobalLogger.Info("MongoDB connected successfully")
	return client, nil
}

// EnsureIndexes creates the indexes the engagement queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	posts := []mongo.IndexModel{
		{Keys: hotScoreCandidateIndex()},
		{Keys: hotFeedSort()},
	}
	if _, err := db.Collection(PostsCollection).Indexes().CreateMany(ctx, posts); err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}

	users := []mongo.IndexModel{
		{Keys: leaderboardSort()},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// nextID allocates sequential numeric IDs through a counters collection so
// documents share the SQL store's uint identifiers.
func nextID(ctx context.Context, db *mongo.Database, name string) (uint, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection("counters").FindOneAndUpdate(ctx,
		counterFilter(name),
		counterIncrement(),
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", name, err)
	}
	return uint(out.Seq), nil
}
