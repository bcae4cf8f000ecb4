package repository

import (
	"context"

	"pulse/internal/models"
	"pulse/internal/observability"

	"gorm.io/gorm"
)

const listBatchSize = 500

// userRepository implements UserRepository
type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", "users")()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	return nil
}

func (r *userRepository) ListAll(ctx context.Context) ([]models.User, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, r.db.Dialector.Name(), "ListAll", "users")
	defer span.End()
	defer observability.TrackQuery("select", "users")()

	var all []models.User
	var batch []models.User
	err := r.db.WithContext(ctx).
		FindInBatches(&batch, listBatchSize, func(_ *gorm.DB, _ int) error {
			all = append(all, batch...)
			return nil
		}).Error
	if err != nil {
		r.log.LogError(ctx, err, "list_all")
		return nil, err
	}
	r.log.LogRead(ctx, map[string]interface{}{"users": len(all)})
	return all, nil
}

func (r *userRepository) SaveEngagement(ctx context.Context, user models.User) error {
	defer observability.TrackQuery("update", "users")()

	res := r.db.WithContext(ctx).
		Model(&models.User{ID: user.ID}).
		Select("StreakDays", "XP", "Badges", "StreakUpdatedOn", "UpdatedAt").
		Updates(&user)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "save_engagement")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("user", user.ID)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{
		"user_id":     user.ID,
		"streak_days": user.StreakDays,
		"xp":          user.XP,
	})
	return nil
}

func (r *userRepository) Leaderboard(ctx context.Context, limit, offset int) ([]models.User, error) {
	defer observability.TrackQuery("select", "users")()

	var users []models.User
	err := r.db.WithContext(ctx).
		Order("xp DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		r.log.LogError(ctx, err, "leaderboard")
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	defer observability.TrackQuery("count", "users")()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		r.log.LogError(ctx, err, "count")
		return 0, err
	}
	return n, nil
}
