// Package service runs the engagement jobs against the stores and serves the
// read paths that depend on their results.
package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"pulse/internal/cache"
	"pulse/internal/clock"
	"pulse/internal/config"
	"pulse/internal/engagement"
	"pulse/internal/models"
	"pulse/internal/observability"
	"pulse/internal/repository"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

// Job names used in logs and metric labels.
const (
	JobHourly = "hourly"
	JobDaily  = "daily"
)

const defaultLockTTL = 30 * time.Minute

// Locker coordinates job runs across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error)
	Completed(ctx context.Context, key string) (bool, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
}

// Invalidator drops cached reads made stale by a job run.
type Invalidator interface {
	InvalidateHotFeed(ctx context.Context) error
	InvalidateLeaderboard(ctx context.Context) error
}

// HourlyReport summarizes one hourly run.
type HourlyReport struct {
	RunID      string        `json:"runId"`
	At         time.Time     `json:"at"`
	Skipped    bool          `json:"skipped"`
	SkipReason string        `json:"skipReason,omitempty"`
	Candidates int           `json:"candidates"`
	Changed    int           `json:"changed"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// DailyReport summarizes one daily run.
type DailyReport struct {
	RunID       string                   `json:"runId"`
	At          time.Time                `json:"at"`
	Day         string                   `json:"day"`
	Skipped     bool                     `json:"skipped"`
	SkipReason  string                   `json:"skipReason,omitempty"`
	Users       int                      `json:"users"`
	Settled     int                      `json:"settled"`
	Changed     int                      `json:"changed"`
	Updated     int                      `json:"updated"`
	Stages      []engagement.StageResult `json:"stages"`
	TopFanMinXP int                      `json:"topFanMinXp"`
	Duration    time.Duration            `json:"duration"`
}

// EngagementService runs the hourly hot-score pass and the daily streak pass.
type EngagementService struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	clock   clock.Clock
	locker  Locker
	cache   Invalidator
	rules   engagement.Rules
	workers int
	lockTTL time.Duration
}

// EngagementOption customizes an EngagementService.
type EngagementOption func(*EngagementService)

// WithLocker sets the run coordinator. Without one, runs are never skipped.
func WithLocker(l Locker) EngagementOption {
	return func(s *EngagementService) { s.locker = l }
}

// WithInvalidator sets the cache dropped after each run.
func WithInvalidator(c Invalidator) EngagementOption {
	return func(s *EngagementService) { s.cache = c }
}

// WithRules replaces the default constants.
func WithRules(r engagement.Rules) EngagementOption {
	return func(s *EngagementService) { s.rules = r }
}

// WithWorkers bounds concurrent hot-score writes.
func WithWorkers(n int) EngagementOption {
	return func(s *EngagementService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLockTTL sets how long a run lock survives a crashed holder.
func WithLockTTL(d time.Duration) EngagementOption {
	return func(s *EngagementService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func NewEngagementService(
	posts repository.PostRepository,
	users repository.UserRepository,
	clk clock.Clock,
	opts ...EngagementOption,
) *EngagementService {
	s := &EngagementService{
		posts:   posts,
		users:   users,
		clock:   clk,
		locker:  cache.NewRunLock(nil),
		cache:   cache.NewJSONCache(nil),
		rules:   engagement.DefaultRules(),
		workers: 8,
		lockTTL: defaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesFromConfig applies the configurable constants to the defaults.
func RulesFromConfig(cfg *config.Config) engagement.Rules {
	r := engagement.DefaultRules()
	r.HotScoreDecay = cfg.HotScoreDecayPerHour
	r.HotScoreWindow = time.Duration(cfg.HotScoreWindowHours) * time.Hour
	r.TopFanFraction = cfg.TopFanFraction
	r.TopFanMinXP = cfg.TopFanMinXP
	return r
}

// RunHourly decays hot scores of approved posts. Each changed post is
// written independently; a failed write does not stop the others and every
// failure is reported in the returned error.
func (s *EngagementService) RunHourly(ctx context.Context) (HourlyReport, error) {
	started := time.Now()
	now := s.clock.Now()
	ctx, log := observability.StartJob(ctx, JobHourly, now)
	span, ctx := observability.NewSpan(ctx, "job.hourly",
		attribute.String("job.run_id", log.RunID()),
	)
	defer span.End()

	report := HourlyReport{RunID: log.RunID(), At: now}
	fail := func(err error) (HourlyReport, error) {
		report.Duration = time.Since(started)
		span.SetError(err)
		log.Failed(ctx, report.Duration, err)
		observability.ObserveJob(JobHourly, observability.JobStatusFailure, report.Duration)
		return report, err
	}

	release, ok, err := s.locker.Acquire(ctx, cache.HourlyLockKey, s.lockTTL)
	if err != nil {
		return fail(err)
	}
	defer release(context.WithoutCancel(ctx))
	if !ok {
		return s.skipHourly(ctx, log, report, started, "another run holds the lock"), nil
	}

	posts, err := s.posts.ListHotScoreCandidates(ctx)
	if err != nil {
		return fail(fmt.Errorf("load hot score candidates: %w", err))
	}
	report.Candidates = len(posts)

	changed := engagement.HotScorePass(posts, now, s.rules)
	report.Changed = len(changed)

	var updated, failed atomic.Int64
	p := pool.New().WithErrors().WithMaxGoroutines(s.workers)
	for _, post := range changed {
		p.Go(func() error {
			if err := s.posts.UpdateHotScore(ctx, post.ID, post.HotScore, *post.HotScoreDecayedAt); err != nil {
				failed.Add(1)
				observability.RecordUpdateFailures.WithLabelValues(JobHourly).Inc()
				return fmt.Errorf("update post %d: %w", post.ID, err)
			}
			updated.Add(1)
			return nil
		})
	}
	writeErr := p.Wait()

	report.Updated = int(updated.Load())
	report.Failed = int(failed.Load())
	observability.RecordsUpdated.WithLabelValues(JobHourly).Add(float64(report.Updated))
	span.AddAttributes(
		attribute.Int("job.candidates", report.Candidates),
		attribute.Int("job.updated", report.Updated),
		attribute.Int("job.failed", report.Failed),
	)

	if report.Updated > 0 {
		if err := s.cache.InvalidateHotFeed(ctx); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to invalidate hot feed cache", "error", err.Error())
		}
	}

	if writeErr != nil {
		return fail(writeErr)
	}

	report.Duration = time.Since(started)
	log.Completed(ctx, report.Duration, map[string]interface{}{
		"candidates": report.Candidates,
		"updated":    report.Updated,
	})
	observability.ObserveJob(JobHourly, observability.JobStatusSuccess, report.Duration)
	return report, nil
}

func (s *EngagementService) skipHourly(ctx context.Context, log *observability.JobLogger, report HourlyReport, started time.Time, reason string) HourlyReport {
	report.Skipped = true
	report.SkipReason = reason
	report.Duration = time.Since(started)
	log.Skipped(ctx, reason)
	observability.ObserveJob(JobHourly, observability.JobStatusSkipped, report.Duration)
	return report
}

// RunDaily advances streaks, awards XP and badges, and recomputes Top Fan.
// Changed users are written one at a time and the run stops at the first
// failed write. Users already advanced today are not advanced again, so a
// rerun after a failure only finishes the remaining work.
func (s *EngagementService) RunDaily(ctx context.Context) (DailyReport, error) {
	started := time.Now()
	now := s.clock.Now()
	run := engagement.NewDailyRun(now, s.rules)
	ctx, log := observability.StartJob(ctx, JobDaily, now)
	span, ctx := observability.NewSpan(ctx, "job.daily",
		attribute.String("job.run_id", log.RunID()),
		attribute.String("job.day", run.Day),
	)
	defer span.End()

	report := DailyReport{RunID: log.RunID(), At: now, Day: run.Day}
	fail := func(err error) (DailyReport, error) {
		report.Duration = time.Since(started)
		span.SetError(err)
		log.Failed(ctx, report.Duration, err)
		observability.ObserveJob(JobDaily, observability.JobStatusFailure, report.Duration)
		return report, err
	}
	skip := func(reason string) (DailyReport, error) {
		report.Skipped = true
		report.SkipReason = reason
		report.Duration = time.Since(started)
		log.Skipped(ctx, reason)
		observability.ObserveJob(JobDaily, observability.JobStatusSkipped, report.Duration)
		return report, nil
	}

	release, ok, err := s.locker.Acquire(ctx, cache.DailyLockKey, s.lockTTL)
	if err != nil {
		return fail(err)
	}
	defer release(context.WithoutCancel(ctx))
	if !ok {
		return skip("another run holds the lock")
	}

	doneKey := cache.DailyDoneKey(run.Day)
	done, err := s.locker.Completed(ctx, doneKey)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "could not read daily completion marker", "error", err.Error())
	}
	if done {
		return skip("already completed for " + run.Day)
	}

	users, err := s.users.ListAll(ctx)
	if err != nil {
		return fail(fmt.Errorf("load users: %w", err))
	}
	report.Users = len(users)

	out := engagement.RunDailyWithHook(run, users, func(name string) func(int) {
		stageSpan, _ := observability.NewSpan(ctx, "job.daily."+name)
		return func(affected int) {
			stageSpan.AddAttributes(attribute.Int("stage.affected", affected))
			stageSpan.End()
			log.Stage(ctx, name, affected)
			observability.StageAffected.WithLabelValues(name).Set(float64(affected))
		}
	})
	report.Stages = out.Stages
	report.Settled = out.Settled
	report.TopFanMinXP = out.TopFanMinXP
	observability.TopFanThreshold.Set(float64(out.TopFanMinXP))

	changed := changedUsers(users, out.Users)
	report.Changed = len(changed)
	for _, u := range changed {
		if err := s.users.SaveEngagement(ctx, u); err != nil {
			observability.RecordUpdateFailures.WithLabelValues(JobDaily).Inc()
			observability.RecordsUpdated.WithLabelValues(JobDaily).Add(float64(report.Updated))
			return fail(fmt.Errorf("save user %d: %w", u.ID, err))
		}
		report.Updated++
	}
	observability.RecordsUpdated.WithLabelValues(JobDaily).Add(float64(report.Updated))

	if err := s.locker.MarkCompleted(ctx, doneKey, cache.DailyDoneTTL); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "could not mark daily run completed", "error", err.Error())
	}
	if report.Updated > 0 {
		if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to invalidate leaderboard cache", "error", err.Error())
		}
	}

	span.AddAttributes(
		attribute.Int("job.users", report.Users),
		attribute.Int("job.updated", report.Updated),
		attribute.Int("job.top_fan_min_xp", report.TopFanMinXP),
	)
	report.Duration = time.Since(started)
	log.Completed(ctx, report.Duration, map[string]interface{}{
		"users":          report.Users,
		"updated":        report.Updated,
		"settled":        report.Settled,
		"top_fan_min_xp": report.TopFanMinXP,
	})
	observability.ObserveJob(JobDaily, observability.JobStatusSuccess, report.Duration)
	return report, nil
}

// changedUsers returns the users in after whose engagement fields differ
// from the same user in before, in after's order.
func changedUsers(before, after []models.User) []models.User {
	prev := make(map[uint]models.User, len(before))
	for _, u := range before {
		prev[u.ID] = u
	}
	var out []models.User
	for _, u := range after {
		if old, ok := prev[u.ID]; ok && old.EngagementEqual(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// HourlyJob returns RunHourly as a scheduler callback. Outcomes are already
// logged and counted by the run itself.
func (s *EngagementService) HourlyJob() func() {
	return func() {
		_, _ = s.RunHourly(context.Background())
	}
}

// DailyJob returns RunDaily as a scheduler callback.
func (s *EngagementService) DailyJob() func() {
	return func() {
		_, _ = s.RunDaily(context.Background())
	}
}
