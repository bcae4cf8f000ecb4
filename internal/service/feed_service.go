package service

import (
	"context"

	"pulse/internal/cache"
	"pulse/internal/models"
	"pulse/internal/repository"
)

// MaxPageSize caps limit on feed reads.
const MaxPageSize = 100

// FeedService serves the reads the engagement jobs keep current.
type FeedService struct {
	posts repository.PostRepository
	users repository.UserRepository
	cache *cache.JSONCache
}

func NewFeedService(posts repository.PostRepository, users repository.UserRepository, c *cache.JSONCache) *FeedService {
	return &FeedService{posts: posts, users: users, cache: c}
}

func validatePage(limit, offset int) error {
	if limit < 1 || limit > MaxPageSize {
		return models.NewValidationError("limit must be between 1 and 100")
	}
	if offset < 0 {
		return models.NewValidationError("offset must not be negative")
	}
	return nil
}

// HotPosts returns approved posts ordered by hot score.
func (s *FeedService) HotPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	key := func(gen int64) string { return cache.HotFeedKey(gen, limit, offset) }
	return cache.AsideVersioned(ctx, s.cache, cache.HotFeedGenKey, key, cache.HotFeedTTL,
		func(ctx context.Context) ([]models.Post, error) {
			return s.posts.ListHot(ctx, limit, offset)
		})
}

// Leaderboard returns the public view of users ordered by XP.
func (s *FeedService) Leaderboard(ctx context.Context, limit, offset int) ([]models.LeaderboardEntry, error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	key := func(gen int64) string { return cache.LeaderboardKey(gen, limit, offset) }
	return cache.AsideVersioned(ctx, s.cache, cache.LeaderboardGenKey, key, cache.LeaderboardTTL,
		func(ctx context.Context) ([]models.LeaderboardEntry, error) {
			users, err := s.users.Leaderboard(ctx, limit, offset)
			if err != nil {
				return nil, err
			}
			entries := make([]models.LeaderboardEntry, len(users))
			for i, u := range users {
				entries[i] = u.LeaderboardEntry()
			}
			return entries, nil
		})
}
