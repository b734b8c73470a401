package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/querypulse/querypulse/internal/cli/config"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending event store schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetConfig(ctx)
			logger := config.GetLogger(ctx)

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open event store: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", store.Dialect())
			return nil
		},
	}
}
