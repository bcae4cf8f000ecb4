package models

import "slices"

// Badge names awarded by the daily engagement pass.
const (
	BadgeOneWeekStreak  = "One Week Streak"
	BadgeOneMonthStreak = "One Month Streak"
	BadgeNice           = "Nice"
	BadgeOneYearStreak  = "One Year Streak"
	BadgeTopFan         = "Top Fan"
)

// Badges is an ordered set of badge names. Award order is preserved and a
// name appears at most once.
type Badges []string

// Has reports whether the set contains name.
func (b Badges) Has(name string) bool {
	return slices.Contains(b, name)
}

// With returns a copy of b that contains name.
func (b Badges) With(name string) Badges {
	out := b.Clone()
	if out.Has(name) {
		return out
	}
	return append(out, name)
}

// Without returns a copy of b with every occurrence of name removed.
func (b Badges) Without(name string) Badges {
	out := make(Badges, 0, len(b))
	for _, n := range b {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// Clone returns an independent copy of b.
func (b Badges) Clone() Badges {
	if b == nil {
		return nil
	}
	return slices.Clone(b)
}

// Equal compares membership, ignoring order.
func (b Badges) Equal(other Badges) bool {
	if len(b.unique()) != len(other.unique()) {
		return false
	}
	for _, n := range b {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

func (b Badges) unique() map[string]struct{} {
	set := make(map[string]struct{}, len(b))
	for _, n := range b {
		set[n] = struct{}{}
	}
	return set
}
