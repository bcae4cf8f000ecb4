package repository

import (
	"context"
	"time"

	"pulse/internal/models"
	"pulse/internal/observability"

	"gorm.io/gorm"
)

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	return nil
}

func (r *postRepository) ListHotScoreCandidates(ctx context.Context) ([]models.Post, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, r.db.Dialector.Name(), "ListHotScoreCandidates", "posts")
	defer span.End()
	defer observability.TrackQuery("select", "posts")()

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("approved = ? AND approved_time IS NOT NULL AND hot_score > 0", true).
		Order("id").
		Find(&posts).Error
	if err != nil {
		r.log.LogError(ctx, err, "list_hot_score_candidates")
		return nil, err
	}
	r.log.LogRead(ctx, map[string]interface{}{"candidates": len(posts)})
	return posts, nil
}

func (r *postRepository) UpdateHotScore(ctx context.Context, id uint, score int, decayedAt time.Time) error {
	defer observability.TrackQuery("update", "posts")()

	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"hot_score":            score,
			"hot_score_decayed_at": decayedAt,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update_hot_score")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("post", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"post_id": id, "hot_score": score})
	return nil
}

func (r *postRepository) ListHot(ctx context.Context, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("select", "posts")()

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("approved = ?", true).
		Order("hot_score DESC").
		Order("approved_time DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		r.log.LogError(ctx, err, "list_hot")
		return nil, err
	}
	return posts, nil
}
