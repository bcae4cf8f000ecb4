package docstore

import (
	"time"

	"pulse/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func hotScoreCandidateFilter() bson.D {
	return bson.D{
		{Key: "approved", Value: true},
		{Key: "approvedTime", Value: bson.D{{Key: "$ne", Value: nil}}},
		{Key: "hotScore", Value: bson.D{{Key: "$gt", Value: 0}}},
	}
}

func hotScoreCandidateIndex() bson.D {
	return bson.D{
		{Key: "approved", Value: 1},
		{Key: "hotScore", Value: 1},
	}
}

func hotScoreUpdate(score int, decayedAt time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "hotScore", Value: score},
		{Key: "hotScoreDecayedAt", Value: decayedAt},
		{Key: "updatedAt", Value: decayedAt},
	}}}
}

func approvedFilter() bson.D {
	return bson.D{{Key: "approved", Value: true}}
}

func hotFeedSort() bson.D {
	return bson.D{
		{Key: "hotScore", Value: -1},
		{Key: "approvedTime", Value: -1},
		{Key: "_id", Value: -1},
	}
}

func leaderboardSort() bson.D {
	return bson.D{
		{Key: "xp", Value: -1},
		{Key: "_id", Value: 1},
	}
}

func byID(id uint) bson.D {
	return bson.D{{Key: "_id", Value: int64(id)}}
}

func engagementUpdate(u models.User, now time.Time) bson.D {
	badges := u.Badges
	if badges == nil {
		badges = models.Badges{}
	}
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "streakDays", Value: u.StreakDays},
		{Key: "xp", Value: u.XP},
		{Key: "badges", Value: []string(badges)},
		{Key: "streakUpdatedOn", Value: u.StreakUpdatedOn},
		{Key: "updatedAt", Value: now},
	}}}
}

func counterFilter(name string) bson.D {
	return bson.D{{Key: "_id", Value: name}}
}

func counterIncrement() bson.D {
	return bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}}
}

func byIDAsc() bson.D {
	return bson.D{{Key: "_id", Value: 1}}
}
