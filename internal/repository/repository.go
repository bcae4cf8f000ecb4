// Package repository provides data access for the engagement jobs.
package repository

import (
	"context"
	"time"

	"pulse/internal/models"
)

// PostRepository defines the post operations the engagement jobs and feed need.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// ListHotScoreCandidates returns approved posts whose hot score can still decay.
	ListHotScoreCandidates(ctx context.Context) ([]models.Post, error)
	UpdateHotScore(ctx context.Context, id uint, score int, decayedAt time.Time) error
	// ListHot returns approved posts ordered by hot score, highest first.
	ListHot(ctx context.Context, limit, offset int) ([]models.Post, error)
}

// UserRepository defines the user operations the engagement jobs and feed need.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	ListAll(ctx context.Context) ([]models.User, error)
	// SaveEngagement writes the streak, XP, badge and streak-day fields of user.
	SaveEngagement(ctx context.Context, user models.User) error
	// Leaderboard returns users ordered by XP, highest first.
	Leaderboard(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}
