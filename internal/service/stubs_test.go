package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	listCandidatesFn func(context.Context) ([]models.Post, error)
	updateHotScoreFn func(context.Context, uint, int, time.Time) error
	listHotFn        func(context.Context, int, int) ([]models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) ListHotScoreCandidates(ctx context.Context) ([]models.Post, error) {
	return s.listCandidatesFn(ctx)
}
func (s *postRepoStub) UpdateHotScore(ctx context.Context, id uint, score int, decayedAt time.Time) error {
	return s.updateHotScoreFn(ctx, id, score, decayedAt)
}
func (s *postRepoStub) ListHot(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.listHotFn(ctx, limit, offset)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:         func(_ context.Context, _ *models.Post) error { return nil },
		listCandidatesFn: func(_ context.Context) ([]models.Post, error) { return nil, nil },
		updateHotScoreFn: func(_ context.Context, _ uint, _ int, _ time.Time) error { return nil },
		listHotFn:        func(_ context.Context, _, _ int) ([]models.Post, error) { return nil, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn         func(context.Context, *models.User) error
	listAllFn        func(context.Context) ([]models.User, error)
	saveEngagementFn func(context.Context, models.User) error
	leaderboardFn    func(context.Context, int, int) ([]models.User, error)
	countFn          func(context.Context) (int64, error)
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) ListAll(ctx context.Context) ([]models.User, error) {
	return s.listAllFn(ctx)
}
func (s *userRepoStub) SaveEngagement(ctx context.Context, user models.User) error {
	return s.saveEngagementFn(ctx, user)
}
func (s *userRepoStub) Leaderboard(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.leaderboardFn(ctx, limit, offset)
}
func (s *userRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		listAllFn:        func(_ context.Context) ([]models.User, error) { return nil, nil },
		saveEngagementFn: func(_ context.Context, _ models.User) error { return nil },
		leaderboardFn:    func(_ context.Context, _, _ int) ([]models.User, error) { return nil, nil },
		countFn:          func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// memoryUserRepo keeps users in a map so consecutive runs see earlier writes.
type memoryUserRepo struct {
	*userRepoStub
	mu     sync.Mutex
	users  map[uint]models.User
	failOn func(models.User) error
}

func newMemoryUserRepo(users ...models.User) *memoryUserRepo {
	m := &memoryUserRepo{userRepoStub: noopUserRepo(), users: map[uint]models.User{}}
	for _, u := range users {
		m.users[u.ID] = u.Clone()
	}
	m.listAllFn = func(_ context.Context) ([]models.User, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var out []models.User
		for id := uint(1); len(out) < len(m.users); id++ {
			if u, ok := m.users[id]; ok {
				out = append(out, u.Clone())
			}
		}
		return out, nil
	}
	m.saveEngagementFn = func(_ context.Context, u models.User) error {
		if m.failOn != nil {
			if err := m.failOn(u); err != nil {
				return err
			}
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.users[u.ID] = u.Clone()
		return nil
	}
	return m
}

func (m *memoryUserRepo) get(id uint) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// lockerStub is a stub for Locker.
type lockerStub struct {
	acquireFn       func(context.Context, string, time.Duration) (func(context.Context), bool, error)
	completedFn     func(context.Context, string) (bool, error)
	markCompletedFn func(context.Context, string, time.Duration) error
}

func (s *lockerStub) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	return s.acquireFn(ctx, key, ttl)
}
func (s *lockerStub) Completed(ctx context.Context, key string) (bool, error) {
	return s.completedFn(ctx, key)
}
func (s *lockerStub) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.markCompletedFn(ctx, key, ttl)
}

func heldLocker() *lockerStub {
	return &lockerStub{
		acquireFn: func(_ context.Context, _ string, _ time.Duration) (func(context.Context), bool, error) {
			return func(context.Context) {}, false, nil
		},
		completedFn:     func(_ context.Context, _ string) (bool, error) { return false, nil },
		markCompletedFn: func(_ context.Context, _ string, _ time.Duration) error { return nil },
	}
}

// invalidatorStub counts invalidations.
type invalidatorStub struct {
	mu          sync.Mutex
	hotFeed     int
	leaderboard int
}

func (s *invalidatorStub) InvalidateHotFeed(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hotFeed++
	return nil
}
func (s *invalidatorStub) InvalidateLeaderboard(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboard++
	return nil
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}
