package docstore

import (
	"context"
	"time"

	"pulse/internal/models"
	"pulse/internal/observability"
	"pulse/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userStore struct {
	db   *mongo.Database
	coll *mongo.Collection
	log  *observability.RepoLogger
}

// NewUserRepository returns a UserRepository backed by the users collection.
func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userStore{
		db:   db,
		coll: db.Collection(UsersCollection),
		log:  observability.NewRepoLogger(UsersCollection),
	}
}

func (s *userStore) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", UsersCollection)()

	if user.ID == 0 {
		id, err := nextID(ctx, s.db, UsersCollection)
		if err != nil {
			return err
		}
		user.ID = id
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Badges == nil {
		user.Badges = models.Badges{}
	}

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		s.log.LogError(ctx, err, "create")
		return err
	}
	return nil
}

func (s *userStore) ListAll(ctx context.Context) ([]models.User, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "mongodb", "ListAll", UsersCollection)
	defer span.End()
	defer observability.TrackQuery("select", UsersCollection)()

	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(byIDAsc()).SetBatchSize(500))
	if err != nil {
		s.log.LogError(ctx, err, "list_all")
		return nil, err
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		s.log.LogError(ctx, err, "list_all")
		return nil, err
	}
	s.log.LogRead(ctx, map[string]interface{}{"users": len(users)})
	return users, nil
}

func (s *userStore) SaveEngagement(ctx context.Context, user models.User) error {
	defer observability.TrackQuery("update", UsersCollection)()

	res, err := s.coll.UpdateOne(ctx, byID(user.ID), engagementUpdate(user, time.Now().UTC()))
	if err != nil {
		s.log.LogError(ctx, err, "save_engagement")
		return err
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("user", user.ID)
	}
	s.log.LogUpdate(ctx, map[string]interface{}{
		"user_id":     user.ID,
		"streak_days": user.StreakDays,
		"xp":          user.XP,
	})
	return nil
}

func (s *userStore) Leaderboard(ctx context.Context, limit, offset int) ([]models.User, error) {
	defer observability.TrackQuery("select", UsersCollection)()

	opts := options.Find().
		SetSort(leaderboardSort()).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		s.log.LogError(ctx, err, "leaderboard")
		return nil, err
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	defer observability.TrackQuery("count", UsersCollection)()

	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		s.log.LogError(ctx, err, "count")
		return 0, err
	}
	return n, nil
}
