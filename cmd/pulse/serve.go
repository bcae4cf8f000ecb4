package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulse/internal/observability"
	"pulse/internal/scheduler"
	"pulse/internal/server"
	"pulse/internal/service"

	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the job scheduler and the ops HTTP server",
		Long: `Start the hourly and daily jobs on their cron schedules and serve
/health, /metrics, the hot feed, the leaderboard and the admin job triggers.

Example:
  pulse serve
  SCHEDULER_ENABLED=false pulse serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), !noScheduler && a.cfg.SchedulerEnabled)
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve HTTP only; jobs run on demand")
	return cmd
}

func (a *app) serve(ctx context.Context, withScheduler bool) error {
	rt, err := a.runtime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	jobs := rt.EngagementService(a.clock)

	checks := make(map[string]server.HealthCheck, len(rt.Checks))
	for name, check := range rt.Checks {
		checks[name] = check
	}
	srv := server.NewServer(a.cfg, rt.FeedService(), jobs, checks)

	var sched *scheduler.Scheduler
	if withScheduler {
		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}
		sched = scheduler.New(loc, observability.GlobalLogger.Logger)
		if err := sched.Register(service.JobHourly, a.cfg.HourlySchedule, jobs.HourlyJob()); err != nil {
			return err
		}
		if err := sched.Register(service.JobDaily, a.cfg.DailySchedule, jobs.DailyJob()); err != nil {
			return err
		}
		sched.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case <-sigChan:
		observability.GlobalLogger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if serveErr != nil {
		errs = append(errs, fmt.Errorf("ops server: %w", serveErr))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("ops server shutdown: %w", err))
	}
	return errors.Join(errs...)
}
