package engagement

import (
	"time"

	"pulse/internal/models"
)

// hoursSince counts whole hours from approved to t, never negative.
func hoursSince(approved, t time.Time) int {
	if t.Before(approved) {
		return 0
	}
	return int(t.Sub(approved) / time.Hour)
}

// DecayHotScore recomputes one post's hot score at now. It returns the
// updated post and whether anything needs persisting.
//
// Decay is measured in whole hours since approval, so the result depends on
// ApprovedTime, the stored checkpoint and now, never on how many times the
// pass ran. A post without a checkpoint is charged at most one hour.
func DecayHotScore(p models.Post, now time.Time, r Rules) (models.Post, bool) {
	if !p.Approved || p.ApprovedTime == nil || p.HotScore <= 0 {
		return p, false
	}
	approved := *p.ApprovedTime

	if !now.Before(approved.Add(r.HotScoreWindow)) {
		p.HotScore = 0
		p.HotScoreDecayedAt = &now
		return p, true
	}

	elapsed := hoursSince(approved, now)
	var steps int
	if p.HotScoreDecayedAt == nil {
		steps = min(1, elapsed)
	} else {
		checkpoint := *p.HotScoreDecayedAt
		if checkpoint.Before(approved) {
			checkpoint = approved
		}
		steps = elapsed - hoursSince(approved, checkpoint)
	}
	if steps <= 0 {
		return p, false
	}

	p.HotScore = max(0, p.HotScore-r.HotScoreDecay*steps)
	p.HotScoreDecayedAt = &now
	return p, true
}

// HotScorePass applies DecayHotScore to every post and returns the posts
// that changed. Posts are independent: each result depends only on that
// post and now.
func HotScorePass(posts []models.Post, now time.Time, r Rules) []models.Post {
	var changed []models.Post
	for _, p := range posts {
		if updated, ok := DecayHotScore(p, now, r); ok {
			changed = append(changed, updated)
		}
	}
	return changed
}
