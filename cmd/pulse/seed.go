package main

import (
	"pulse/internal/seed"

	"github.com/spf13/cobra"
)

func newSeedCommand(a *app) *cobra.Command {
	opts := seed.Options{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo users and posts",
		Long: `Create demo users with login streaks and XP, and posts spread over the
last few days, so the jobs have realistic data to work on.

Example:
  pulse seed --users 200 --posts 1000
  pulse seed --users 10 --posts 20 --seed 42 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			f := seed.NewFactory(rt.Posts, rt.Users, opts)
			res, err := f.Run(ctx, a.clock.Now())
			if err != nil {
				return err
			}
			cmd.Printf("seeded %d users and %d posts\n", len(res.Users), len(res.Posts))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Users, "users", 50, "number of users to create")
	cmd.Flags().IntVar(&opts.Posts, "posts", 200, "number of posts to create")
	cmd.Flags().IntVar(&opts.MaxDays, "max-days", 10, "spread approvals over this many days")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "build records without writing them")
	return cmd
}
