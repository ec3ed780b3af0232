package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type migrator interface {
	RunMigrations(ctx context.Context) error
}

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := app.Store.(migrator)
			if !ok {
				return fmt.Errorf("%s storage does not support migrations", app.Cfg.Storage.Driver)
			}
			if err := m.RunMigrations(app.Ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Migrations applied (%s)\n\n", app.Cfg.Storage.Driver)
			return nil
		},
	}
}
