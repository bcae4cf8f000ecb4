package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, repo UserRepository, xp ...int) []models.User {
	t.Helper()
	out := make([]models.User, 0, len(xp))
	for i, v := range xp {
		u := models.User{
			Username:  fmt.Sprintf("user%d", i),
			Email:     fmt.Sprintf("user%d@example.com", i),
			LastLogin: repoNow.Add(-time.Duration(i) * time.Hour),
			XP:        v,
		}
		require.NoError(t, repo.Create(context.Background(), &u))
		out = append(out, u)
	}
	return out
}

func TestUserRepository_ListAllSpansBatches(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)

	xp := make([]int, listBatchSize+7)
	seedUsers(t, repo, xp...)

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, listBatchSize+7)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, listBatchSize+7, n)
}

func TestUserRepository_SaveEngagement(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	users := seedUsers(t, repo, 40)
	u := users[0]
	u.StreakDays = 7
	u.XP = 45
	u.Badges = models.Badges{models.BadgeOneWeekStreak, models.BadgeTopFan}
	u.StreakUpdatedOn = "2024-05-10"
	u.Username = "renamed"

	require.NoError(t, repo.SaveEngagement(ctx, u))

	var stored models.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, 7, stored.StreakDays)
	assert.Equal(t, 45, stored.XP)
	assert.Equal(t, models.Badges{models.BadgeOneWeekStreak, models.BadgeTopFan}, stored.Badges)
	assert.Equal(t, "2024-05-10", stored.StreakUpdatedOn)
	assert.Equal(t, "user0", stored.Username, "only engagement fields are written")

	// Zero values must be written too.
	u.StreakDays = 0
	u.Badges = models.Badges{}
	require.NoError(t, repo.SaveEngagement(ctx, u))
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, 0, stored.StreakDays)
	assert.Empty(t, stored.Badges)
}

func TestUserRepository_SaveEngagement_TouchesUpdatedAt(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := seedUsers(t, repo, 10)[0]
	stale := time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).UpdateColumn("updated_at", stale).Error)

	u.StreakDays = 1
	require.NoError(t, repo.SaveEngagement(ctx, u))

	var stored models.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.True(t, stored.UpdatedAt.After(stale.Add(time.Hour)), "updated_at must advance, got %v", stored.UpdatedAt)
}

func TestUserRepository_SaveEngagement_NotFound(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)

	err := repo.SaveEngagement(context.Background(), models.User{ID: 404, XP: 1})
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestUserRepository_Leaderboard(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)

	seedUsers(t, repo, 10, 50, 30, 50, 0)

	top, err := repo.Leaderboard(context.Background(), 3, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []int{50, 50, 30}, []int{top[0].XP, top[1].XP, top[2].XP})
	assert.Less(t, top[0].ID, top[1].ID)

	// Skip into the sorted order, as the Top Fan rank lookup does.
	at, err := repo.Leaderboard(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, at, 1)
	assert.Equal(t, 10, at[0].XP)
}

func TestUserRepository_Count_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnError(errors.New("connection timeout"))

	n, err := repo.Count(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
