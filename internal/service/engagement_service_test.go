package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pulse/internal/cache"
	"pulse/internal/clock"
	"pulse/internal/config"
	"pulse/internal/engagement"
	"pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)

func approvedPost(id uint, age time.Duration, score int) models.Post {
	at := runAt.Add(-age)
	return models.Post{ID: id, Approved: true, ApprovedTime: &at, HotScore: score}
}

type hotScoreWrite struct {
	score int
	at    time.Time
}

func TestRunHourly_DecaysAndPersists(t *testing.T) {
	posts := noopPostRepo()
	posts.listCandidatesFn = func(context.Context) ([]models.Post, error) {
		return []models.Post{
			approvedPost(1, 2*time.Hour, 10),
			approvedPost(2, 8*24*time.Hour, 10),
			{ID: 3, Approved: false, HotScore: 10},
		}, nil
	}
	var mu sync.Mutex
	writes := map[uint]hotScoreWrite{}
	posts.updateHotScoreFn = func(_ context.Context, id uint, score int, at time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		writes[id] = hotScoreWrite{score, at}
		return nil
	}
	inv := &invalidatorStub{}

	svc := NewEngagementService(posts, noopUserRepo(), clock.NewManual(runAt), WithInvalidator(inv))
	report, err := svc.RunHourly(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 2, report.Changed)
	assert.Equal(t, 2, report.Updated)
	assert.Zero(t, report.Failed)
	assert.Equal(t, map[uint]hotScoreWrite{
		1: {5, runAt},
		2: {0, runAt},
	}, writes)
	assert.Equal(t, 1, inv.hotFeed)
	assert.NotEmpty(t, report.RunID)
}

func TestRunHourly_FailedWriteDoesNotBlockOthers(t *testing.T) {
	errStore := errors.New("connection reset")
	posts := noopPostRepo()
	posts.listCandidatesFn = func(context.Context) ([]models.Post, error) {
		return []models.Post{
			approvedPost(1, time.Hour, 20),
			approvedPost(2, time.Hour, 20),
			approvedPost(3, time.Hour, 20),
		}, nil
	}
	var mu sync.Mutex
	var written []uint
	posts.updateHotScoreFn = func(_ context.Context, id uint, _ int, _ time.Time) error {
		if id == 2 {
			return errStore
		}
		mu.Lock()
		defer mu.Unlock()
		written = append(written, id)
		return nil
	}

	svc := NewEngagementService(posts, noopUserRepo(), clock.NewManual(runAt), WithWorkers(1))
	report, err := svc.RunHourly(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)
	assert.Contains(t, err.Error(), "update post 2")
	assert.ElementsMatch(t, []uint{1, 3}, written)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Failed)
}

func TestRunHourly_LoadFailure(t *testing.T) {
	posts := noopPostRepo()
	posts.listCandidatesFn = func(context.Context) ([]models.Post, error) {
		return nil, errors.New("db down")
	}
	svc := NewEngagementService(posts, noopUserRepo(), clock.NewManual(runAt))

	_, err := svc.RunHourly(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load hot score candidates")
}

func TestRunHourly_SkipsWhenLockHeld(t *testing.T) {
	posts := noopPostRepo()
	posts.listCandidatesFn = func(context.Context) ([]models.Post, error) {
		t.Fatal("store must not be read while another run holds the lock")
		return nil, nil
	}
	svc := NewEngagementService(posts, noopUserRepo(), clock.NewManual(runAt), WithLocker(heldLocker()))

	report, err := svc.RunHourly(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.NotEmpty(t, report.SkipReason)
}

func TestRunHourly_LockErrorFails(t *testing.T) {
	locker := heldLocker()
	locker.acquireFn = func(_ context.Context, _ string, _ time.Duration) (func(context.Context), bool, error) {
		return func(context.Context) {}, false, errors.New("redis timeout")
	}
	svc := NewEngagementService(noopPostRepo(), noopUserRepo(), clock.NewManual(runAt), WithLocker(locker))

	_, err := svc.RunHourly(context.Background())
	assert.Error(t, err)
}

func TestRunHourly_RepeatedRunsInSameHourAreStable(t *testing.T) {
	at := runAt.Add(-3 * time.Hour)
	post := models.Post{ID: 1}
	post.Approve(at, 30)

	posts := noopPostRepo()
	posts.listCandidatesFn = func(context.Context) ([]models.Post, error) {
		return []models.Post{post}, nil
	}
	posts.updateHotScoreFn = func(_ context.Context, _ uint, score int, decayedAt time.Time) error {
		post.HotScore = score
		post.HotScoreDecayedAt = &decayedAt
		return nil
	}
	clk := clock.NewManual(runAt)
	svc := NewEngagementService(posts, noopUserRepo(), clk, WithWorkers(1))

	_, err := svc.RunHourly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, post.HotScore)

	clk.Advance(20 * time.Minute)
	report, err := svc.RunHourly(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Changed)
	assert.Equal(t, 15, post.HotScore)
}

func dailyUsers() []models.User {
	return []models.User{
		{ID: 1, LastLogin: runAt.Add(-2 * time.Hour), StreakDays: 2},
		{ID: 2, LastLogin: runAt.Add(-48 * time.Hour), StreakDays: 5},
		{ID: 3, LastLogin: runAt.Add(-72 * time.Hour), StreakDays: 0},
		{ID: 4, LastLogin: runAt.Add(-time.Hour), StreakDays: 6},
	}
}

func TestRunDaily_PersistsChangedUsers(t *testing.T) {
	repo := newMemoryUserRepo(dailyUsers()...)
	var saved []uint
	repo.failOn = func(u models.User) error {
		saved = append(saved, u.ID)
		return nil
	}
	var marked string
	locker := heldLocker()
	locker.acquireFn = func(_ context.Context, _ string, _ time.Duration) (func(context.Context), bool, error) {
		return func(context.Context) {}, true, nil
	}
	locker.markCompletedFn = func(_ context.Context, key string, _ time.Duration) error {
		marked = key
		return nil
	}
	inv := &invalidatorStub{}

	svc := NewEngagementService(noopPostRepo(), repo, clock.NewManual(runAt),
		WithLocker(locker), WithInvalidator(inv))
	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-05-10", report.Day)
	assert.Equal(t, 4, report.Users)
	assert.Equal(t, []uint{1, 2, 4}, saved, "user 3 had nothing to change")
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, "pulse:daily:2024-05-10", marked)
	assert.Equal(t, 1, inv.leaderboard)
	require.Len(t, report.Stages, 6)

	u1 := repo.get(1)
	assert.Equal(t, 3, u1.StreakDays)
	assert.Equal(t, 5, u1.XP)
	assert.Equal(t, 0, repo.get(2).StreakDays)
	u4 := repo.get(4)
	assert.Equal(t, 7, u4.StreakDays)
	assert.True(t, u4.Badges.Has(models.BadgeOneWeekStreak))
}

func TestRunDaily_SkipsCompletedDay(t *testing.T) {
	users := noopUserRepo()
	users.listAllFn = func(context.Context) ([]models.User, error) {
		t.Fatal("users must not be loaded for a completed day")
		return nil, nil
	}
	locker := heldLocker()
	locker.acquireFn = func(_ context.Context, _ string, _ time.Duration) (func(context.Context), bool, error) {
		return func(context.Context) {}, true, nil
	}
	locker.completedFn = func(_ context.Context, key string) (bool, error) {
		return key == cache.DailyDoneKey("2024-05-10"), nil
	}

	svc := NewEngagementService(noopPostRepo(), users, clock.NewManual(runAt), WithLocker(locker))
	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
}

func TestRunDaily_AbortsOnFirstWriteErrorAndResumes(t *testing.T) {
	repo := newMemoryUserRepo(dailyUsers()...)
	errStore := errors.New("deadlock detected")
	attempts := 0
	repo.failOn = func(u models.User) error {
		attempts++
		if u.ID == 2 {
			return errStore
		}
		return nil
	}
	clk := clock.NewManual(runAt)
	svc := NewEngagementService(noopPostRepo(), repo, clk)

	report, err := svc.RunDaily(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, 2, attempts, "no write after the failing one")
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 3, repo.get(1).StreakDays)
	assert.Equal(t, 6, repo.get(4).StreakDays, "user after the failure untouched")

	repo.failOn = nil
	clk.Advance(10 * time.Minute)
	report, err = svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, 3, repo.get(1).StreakDays, "user 1 advanced only once today")
	assert.Equal(t, 5, repo.get(1).XP)
	assert.Equal(t, 0, repo.get(2).StreakDays)
	assert.Equal(t, 7, repo.get(4).StreakDays)
}

func TestRunDaily_TopFanThreshold(t *testing.T) {
	var users []models.User
	for i := 1; i <= 20; i++ {
		users = append(users, models.User{ID: uint(i), LastLogin: runAt.Add(-72 * time.Hour), XP: i * 10})
	}
	repo := newMemoryUserRepo(users...)
	svc := NewEngagementService(noopPostRepo(), repo, clock.NewManual(runAt))

	report, err := svc.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 190, report.TopFanMinXP)
	assert.Equal(t, 2, report.Updated)
	assert.True(t, repo.get(20).Badges.Has(models.BadgeTopFan))
	assert.True(t, repo.get(19).Badges.Has(models.BadgeTopFan))
	assert.False(t, repo.get(18).Badges.Has(models.BadgeTopFan))
}

func TestJobs_SwallowOutcome(t *testing.T) {
	posts := noopPostRepo()
	posts.listCandidatesFn = func(context.Context) ([]models.Post, error) {
		return nil, errors.New("db down")
	}
	svc := NewEngagementService(posts, noopUserRepo(), clock.NewManual(runAt))

	assert.NotPanics(t, svc.HourlyJob())
	assert.NotPanics(t, svc.DailyJob())
}

func TestRulesFromConfig(t *testing.T) {
	r := RulesFromConfig(&config.Config{
		HotScoreDecayPerHour: 2,
		HotScoreWindowHours:  48,
		TopFanFraction:       0.1,
		TopFanMinXP:          25,
	})
	assert.Equal(t, 2, r.HotScoreDecay)
	assert.Equal(t, 48*time.Hour, r.HotScoreWindow)
	assert.Equal(t, 0.1, r.TopFanFraction)
	assert.Equal(t, 25, r.TopFanMinXP)
	assert.Equal(t, engagement.DefaultRules().Milestones, r.Milestones)
}
