package main

import (
	"encoding/json"
	"fmt"

	"pulse/internal/service"

	"github.com/spf13/cobra"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run <hourly|daily>",
		Short:     "Run one job immediately and print its report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{service.JobHourly, service.JobDaily},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			jobs := rt.EngagementService(a.clock)
			var report interface{}
			switch args[0] {
			case service.JobHourly:
				report, err = jobs.RunHourly(ctx)
			case service.JobDaily:
				report, err = jobs.RunDaily(ctx)
			default:
				return fmt.Errorf("unknown job %q: must be %s or %s", args[0], service.JobHourly, service.JobDaily)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil && err == nil {
				err = encErr
			}
			return err
		},
	}
	return cmd
}
