// Package engagement holds the recompute logic behind the hourly hot-score
// pass and the daily streak, XP and badge pass. Every function here is a pure
// transformation of a record snapshot and the time it is evaluated at; loading
// and persisting records belongs to the service layer.
package engagement

import (
	"time"

	"pulse/internal/models"
)

// Milestone awards Badge to users whose streak reaches exactly Days.
type Milestone struct {
	Days  int
	Badge string
}

// Rules are the tunable constants of both passes.
type Rules struct {
	// HotScoreDecay is subtracted from a post's hot score per elapsed hour.
	HotScoreDecay int
	// HotScoreWindow is the age after which a post is fully decayed.
	HotScoreWindow time.Duration

	// StreakWindow is how recent a login must be to extend a streak.
	StreakWindow time.Duration
	// XPEvery awards XP on streak days that are a multiple of it.
	XPEvery      int
	LowTierXP    int
	HighTierXP   int
	HighTierFrom int
	Milestones   []Milestone

	// TopFanFraction is the share of users, ranked by XP, that sets the
	// Top Fan threshold.
	TopFanFraction float64
	TopFanMinXP    int
}

// DefaultRules returns the production constants.
func DefaultRules() Rules {
	return Rules{
		HotScoreDecay:  5,
		HotScoreWindow: 7 * 24 * time.Hour,
		StreakWindow:   24 * time.Hour,
		XPEvery:        3,
		LowTierXP:      5,
		HighTierXP:     10,
		HighTierFrom:   15,
		Milestones: []Milestone{
			{Days: 7, Badge: models.BadgeOneWeekStreak},
			{Days: 30, Badge: models.BadgeOneMonthStreak},
			{Days: 69, Badge: models.BadgeNice},
			{Days: 365, Badge: models.BadgeOneYearStreak},
		},
		TopFanFraction: 0.05,
		TopFanMinXP:    10,
	}
}
