package main

import (
	"fmt"

	"pulse/internal/database"
	"pulse/internal/docstore"

	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			if rt.Mongo != nil {
				return docstore.EnsureIndexes(ctx, rt.Mongo.Database(a.cfg.MongoDB))
			}
			if err := database.Migrate(rt.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return nil
		},
	}
}
