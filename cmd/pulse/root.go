package main

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/bootstrap"
	"pulse/internal/clock"
	"pulse/internal/config"
	"pulse/internal/observability"

	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand.
type app struct {
	cfg           *config.Config
	clock         clock.Clock
	shutdownTrace func(context.Context) error
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "pulse",
		Short:         "Engagement recompute jobs for the feed",
		Long:          "pulse decays post hot scores every hour and advances login streaks, XP and badges every day.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdownTrace == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.shutdownTrace(ctx)
		},
	}

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newSeedCommand(a))
	return cmd
}

func (a *app) init() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg
	observability.SetLevel(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	a.clock = clock.System{Location: loc}

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "pulse",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return err
	}
	a.shutdownTrace = shutdown
	return nil
}

// runtime connects the configured stores; callers must Close it.
func (a *app) runtime(ctx context.Context) (*bootstrap.Runtime, error) {
	return bootstrap.InitRuntime(ctx, a.cfg)
}

func closeRuntime(rt *bootstrap.Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		observability.GlobalLogger.Error("error closing connections", "error", err.Error())
	}
}
