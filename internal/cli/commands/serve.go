package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/querypulse/querypulse/internal/cli/config"
	"github.com/querypulse/querypulse/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the JSON API server exposing usage reports, engagement stats,
event logging, and favorites over HTTP.

The stats endpoints need a Postgres event store; on SQLite they return
501 Not Implemented.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetConfig(cmd.Context())
			logger := config.GetLogger(cmd.Context())

			if !cmd.Flags().Changed("port") {
				port = cfg.HTTPPort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open event store: %w", err)
			}
			defer func() { _ = store.Close() }()

			srv := server.New(server.Config{
				Store:      store,
				Port:       port,
				WindowDays: cfg.WindowDays,
				Workers:    cfg.Workers,
				Logger:     logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config)")

	return cmd
}
