package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account with its login streak and gamification state.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id" bson:"_id"`
	Username   string    `gorm:"uniqueIndex;not null" json:"username" bson:"username"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	LastLogin  time.Time `gorm:"index" json:"last_login" bson:"lastLogin"`
	StreakDays int       `gorm:"not null;default:0" json:"streak_days" bson:"streakDays"`
	XP         int       `gorm:"column:xp;not null;default:0;index" json:"xp" bson:"xp"`
	Badges     Badges    `gorm:"serializer:json" json:"badges" bson:"badges"`
	// StreakUpdatedOn is the calendar day (YYYY-MM-DD) the streak was last
	// advanced by the daily pass.
	StreakUpdatedOn string         `gorm:"size:10" json:"-" bson:"streakUpdatedOn,omitempty"`
	CreatedAt       time.Time      `json:"created_at" bson:"createdAt"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-" bson:"-"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// Clone returns a copy of u that shares no mutable state with it.
func (u User) Clone() User {
	u.Badges = u.Badges.Clone()
	return u
}

// EngagementEqual reports whether u and other agree on every field the
// daily pass writes.
func (u User) EngagementEqual(other User) bool {
	return u.StreakDays == other.StreakDays &&
		u.XP == other.XP &&
		u.StreakUpdatedOn == other.StreakUpdatedOn &&
		u.Badges.Equal(other.Badges)
}

// LeaderboardEntry is the public view of a user on the leaderboard.
type LeaderboardEntry struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	XP         int    `json:"xp"`
	StreakDays int    `json:"streak_days"`
	Badges     Badges `json:"badges"`
}

// LeaderboardEntry returns the fields of u that the leaderboard may show.
func (u User) LeaderboardEntry() LeaderboardEntry {
	return LeaderboardEntry{
		ID:         u.ID,
		Username:   u.Username,
		XP:         u.XP,
		StreakDays: u.StreakDays,
		Badges:     u.Badges.Clone(),
	}
}
