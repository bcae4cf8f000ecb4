package engagement

import (
	"sort"
	"time"

	"pulse/internal/models"
)

// DayLayout formats the calendar day key stored in User.StreakUpdatedOn.
const DayLayout = "2006-01-02"

// DailyRun carries the inputs shared by every stage of one daily pass.
type DailyRun struct {
	Now       time.Time
	Yesterday time.Time
	// Day identifies the run's calendar day in Now's location.
	Day   string
	Rules Rules
}

// NewDailyRun derives the stage inputs for a pass evaluated at now.
func NewDailyRun(now time.Time, r Rules) DailyRun {
	return DailyRun{
		Now:       now,
		Yesterday: now.Add(-r.StreakWindow),
		Day:       now.Format(DayLayout),
		Rules:     r,
	}
}

// Stage is one step of the daily pipeline. Apply must not modify its input;
// it returns the next snapshot and how many users the step affected.
type Stage struct {
	Name  string
	Apply func(run DailyRun, users []models.User) ([]models.User, int)
}

// StageResult reports what a stage did.
type StageResult struct {
	Name     string
	Affected int
}

// DailyOutcome is the result of RunDaily.
type DailyOutcome struct {
	Users  []models.User
	Stages []StageResult
	// Settled counts users whose streak had already been advanced on Day.
	Settled     int
	TopFanMinXP int
}

// Stage names, in pipeline order.
const (
	StageStreakReset     = "streak_reset"
	StageStreakIncrement = "streak_increment"
	StageXPLowTier       = "xp_low_tier"
	StageXPHighTier      = "xp_high_tier"
	StageMilestoneBadges = "milestone_badges"
	StageTopFan          = "top_fan"
)

// StreakStages are the per-user streak steps. They only ever see users whose
// streak has not yet been advanced on the run's day.
func StreakStages() []Stage {
	return []Stage{
		{Name: StageStreakReset, Apply: resetStreaks},
		{Name: StageStreakIncrement, Apply: incrementStreaks},
		{Name: StageXPLowTier, Apply: awardLowTierXP},
		{Name: StageXPHighTier, Apply: awardHighTierXP},
		{Name: StageMilestoneBadges, Apply: awardMilestoneBadges},
	}
}

// PopulationStages rank users against each other and see everyone.
func PopulationStages() []Stage {
	return []Stage{
		{Name: StageTopFan, Apply: recomputeTopFans},
	}
}

// StageHook is called as each stage starts; the returned func, if any, is
// called with the stage's affected count once it finishes.
type StageHook func(name string) func(affected int)

// RunDaily evaluates the full daily pipeline over users. Each stage reads the
// snapshot produced by the stage before it. The input slice is not modified.
func RunDaily(run DailyRun, users []models.User) DailyOutcome {
	return RunDailyWithHook(run, users, nil)
}

// RunDailyWithHook is RunDaily with a hook around every stage.
func RunDailyWithHook(run DailyRun, users []models.User, hook StageHook) DailyOutcome {
	var pending, settled []models.User
	for _, u := range users {
		if u.StreakUpdatedOn == run.Day {
			settled = append(settled, u.Clone())
		} else {
			pending = append(pending, u.Clone())
		}
	}

	out := DailyOutcome{Settled: len(settled)}
	apply := func(st Stage, in []models.User) []models.User {
		var done func(int)
		if hook != nil {
			done = hook(st.Name)
		}
		next, n := st.Apply(run, in)
		if done != nil {
			done(n)
		}
		out.Stages = append(out.Stages, StageResult{Name: st.Name, Affected: n})
		return next
	}

	for _, st := range StreakStages() {
		pending = apply(st, pending)
	}
	all := append(pending, settled...)
	for _, st := range PopulationStages() {
		all = apply(st, all)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out.Users = all
	out.TopFanMinXP = TopFanThreshold(all, run.Rules)
	return out
}

// mapUsers copies users, applies fn to each copy and counts the copies for
// which fn reported a change.
func mapUsers(users []models.User, fn func(u *models.User) bool) ([]models.User, int) {
	out := make([]models.User, len(users))
	n := 0
	for i, u := range users {
		c := u.Clone()
		if fn(&c) {
			n++
		}
		out[i] = c
	}
	return out, n
}

func resetStreaks(run DailyRun, users []models.User) ([]models.User, int) {
	return mapUsers(users, func(u *models.User) bool {
		if u.LastLogin.Before(run.Yesterday) && u.StreakDays > 0 {
			u.StreakDays = 0
			return true
		}
		return false
	})
}

func incrementStreaks(run DailyRun, users []models.User) ([]models.User, int) {
	return mapUsers(users, func(u *models.User) bool {
		if u.LastLogin.Before(run.Yesterday) {
			return false
		}
		u.StreakDays++
		u.StreakUpdatedOn = run.Day
		return true
	})
}

func onXPDay(days, every int) bool {
	return every > 0 && days > 0 && days%every == 0
}

func awardLowTierXP(run DailyRun, users []models.User) ([]models.User, int) {
	r := run.Rules
	return mapUsers(users, func(u *models.User) bool {
		if onXPDay(u.StreakDays, r.XPEvery) && u.StreakDays < r.HighTierFrom {
			u.XP += r.LowTierXP
			return true
		}
		return false
	})
}

func awardHighTierXP(run DailyRun, users []models.User) ([]models.User, int) {
	r := run.Rules
	return mapUsers(users, func(u *models.User) bool {
		if onXPDay(u.StreakDays, r.XPEvery) && u.StreakDays >= r.HighTierFrom {
			u.XP += r.HighTierXP
			return true
		}
		return false
	})
}

func awardMilestoneBadges(run DailyRun, users []models.User) ([]models.User, int) {
	return mapUsers(users, func(u *models.User) bool {
		for _, m := range run.Rules.Milestones {
			if u.StreakDays == m.Days && !u.Badges.Has(m.Badge) {
				u.Badges = u.Badges.With(m.Badge)
				return true
			}
		}
		return false
	})
}

func recomputeTopFans(run DailyRun, users []models.User) ([]models.User, int) {
	minXP := TopFanThreshold(users, run.Rules)
	return mapUsers(users, func(u *models.User) bool {
		u.Badges = u.Badges.Without(models.BadgeTopFan)
		if u.XP >= minXP {
			u.Badges = u.Badges.With(models.BadgeTopFan)
			return true
		}
		return false
	})
}

// TopFanThreshold returns the XP a user needs for the Top Fan badge: the XP
// held at rank floor(n*fraction) when users are ordered by XP descending,
// but never less than the configured floor. Ties at the boundary all
// qualify.
func TopFanThreshold(users []models.User, r Rules) int {
	xp := make([]int, len(users))
	for i, u := range users {
		xp[i] = u.XP
	}
	sort.Sort(sort.Reverse(sort.IntSlice(xp)))

	rank := int(float64(len(xp)) * r.TopFanFraction)
	if rank < len(xp) {
		return max(xp[rank], r.TopFanMinXP)
	}
	return r.TopFanMinXP
}
