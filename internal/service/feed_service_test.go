package service

import (
	"context"
	"testing"

	"pulse/internal/cache"
	"pulse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedService_Validation(t *testing.T) {
	svc := NewFeedService(noopPostRepo(), noopUserRepo(), cache.NewJSONCache(nil))
	ctx := context.Background()

	tests := []struct {
		name          string
		limit, offset int
	}{
		{"zero limit", 0, 0},
		{"limit too large", 101, 0},
		{"negative offset", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.HotPosts(ctx, tt.limit, tt.offset)
			assertValidationError(t, err)
			_, err = svc.Leaderboard(ctx, tt.limit, tt.offset)
			assertValidationError(t, err)
		})
	}
}

func TestFeedService_ReadsThroughCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jc := cache.NewJSONCache(rdb)

	posts := noopPostRepo()
	postCalls := 0
	posts.listHotFn = func(_ context.Context, limit, offset int) ([]models.Post, error) {
		postCalls++
		assert.Equal(t, 20, limit)
		assert.Equal(t, 0, offset)
		return []models.Post{{ID: 9, Approved: true, HotScore: 40}}, nil
	}
	users := noopUserRepo()
	userCalls := 0
	users.leaderboardFn = func(_ context.Context, _, _ int) ([]models.User, error) {
		userCalls++
		return []models.User{{ID: 4, Username: "ada", Email: "ada@example.com", XP: 120}}, nil
	}

	svc := NewFeedService(posts, users, jc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := svc.HotPosts(ctx, 20, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 40, got[0].HotScore)

		top, err := svc.Leaderboard(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, "ada", top[0].Username)
	}
	assert.Equal(t, 1, postCalls)
	assert.Equal(t, 1, userCalls)

	raw, err := mr.Get(cache.LeaderboardKey(0, 10, 0))
	require.NoError(t, err)
	assert.NotContains(t, raw, "ada@example.com")

	require.NoError(t, jc.InvalidateHotFeed(ctx))
	_, err = svc.HotPosts(ctx, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, postCalls)
}
