package docstore

import (
	"context"
	"time"

	"pulse/internal/models"
	"pulse/internal/observability"
	"pulse/internal/repository"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type postStore struct {
	db   *mongo.Database
	coll *mongo.Collection
	log  *observability.RepoLogger
}

// NewPostRepository returns a PostRepository backed by the posts collection.
func NewPostRepository(db *mongo.Database) repository.PostRepository {
	return &postStore{
		db:   db,
		coll: db.Collection(PostsCollection),
		log:  observability.NewRepoLogger(PostsCollection),
	}
}

func (s *postStore) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", PostsCollection)()

	if post.ID == 0 {
		id, err := nextID(ctx, s.db, PostsCollection)
		if err != nil {
			return err
		}
		post.ID = id
	}
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, post); err != nil {
		s.log.LogError(ctx, err, "create")
		return err
	}
	return nil
}

func (s *postStore) ListHotScoreCandidates(ctx context.Context) ([]models.Post, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "mongodb", "ListHotScoreCandidates", PostsCollection)
	defer span.End()
	defer observability.TrackQuery("select", PostsCollection)()

	cur, err := s.coll.Find(ctx, hotScoreCandidateFilter(), options.Find().SetSort(byIDAsc()))
	if err != nil {
		s.log.LogError(ctx, err, "list_hot_score_candidates")
		return nil, err
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		s.log.LogError(ctx, err, "list_hot_score_candidates")
		return nil, err
	}
	s.log.LogRead(ctx, map[string]interface{}{"candidates": len(posts)})
	return posts, nil
}

func (s *postStore) UpdateHotScore(ctx context.Context, id uint, score int, decayedAt time.Time) error {
	defer observability.TrackQuery("update", PostsCollection)()

	res, err := s.coll.UpdateOne(ctx, byID(id), hotScoreUpdate(score, decayedAt))
	if err != nil {
		s.log.LogError(ctx, err, "update_hot_score")
		return err
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("post", id)
	}
	s.log.LogUpdate(ctx, map[string]interface{}{"post_id": id, "hot_score": score})
	return nil
}

func (s *postStore) ListHot(ctx context.Context, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("select", PostsCollection)()

	opts := options.Find().
		SetSort(hotFeedSort()).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, approvedFilter(), opts)
	if err != nil {
		s.log.LogError(ctx, err, "list_hot")
		return nil, err
	}
	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
