package cache

import (
	"fmt"
	"time"
)

const (
	HotFeedKeyPrefix     = "pulse:feed:hot:%d:%d:%d"
	LeaderboardKeyPrefix = "pulse:leaderboard:%d:%d:%d"
	DailyDoneKeyPrefix   = "pulse:daily:%s"

	hotFeedPattern     = "pulse:feed:hot:*"
	leaderboardPattern = "pulse:leaderboard:*"
)

// Generation counters. Page keys embed the current value, so bumping a
// counter orphans every page written under the previous one.
const (
	HotFeedGenKey     = "pulse:gen:feed:hot"
	LeaderboardGenKey = "pulse:gen:leaderboard"
)

// Lock keys for the two jobs.
const (
	HourlyLockKey = "pulse:lock:hourly"
	DailyLockKey  = "pulse:lock:daily"
)

const (
	HotFeedTTL     = 2 * time.Minute
	LeaderboardTTL = 5 * time.Minute
	DailyDoneTTL   = 48 * time.Hour
)

func HotFeedKey(gen int64, limit, offset int) string {
	return fmt.Sprintf(HotFeedKeyPrefix, gen, limit, offset)
}

func LeaderboardKey(gen int64, limit, offset int) string {
	return fmt.Sprintf(LeaderboardKeyPrefix, gen, limit, offset)
}

// DailyDoneKey marks the daily pass for day (YYYY-MM-DD) as finished.
func DailyDoneKey(day string) string {
	return fmt.Sprintf(DailyDoneKeyPrefix, day)
}
