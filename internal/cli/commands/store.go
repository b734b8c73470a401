// Package commands implements the querypulse subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/querypulse/querypulse/internal/cli/config"
	"github.com/querypulse/querypulse/internal/events"
)

// openStore opens the event store selected by the configuration.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (events.Store, error) {
	switch cfg.StoreType {
	case events.DialectSQLite, "":
		return events.OpenSQLite(cfg.StorePath, logger)
	case events.DialectPostgres:
		return events.OpenPostgres(ctx, events.PostgresConfig{
			Host:     cfg.StoreHost,
			Port:     cfg.StorePort,
			Database: cfg.StoreDatabase,
			User:     cfg.StoreUser,
			Password: cfg.StorePassword,
			SSLMode:  cfg.StoreSSLMode,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store type %q (expected sqlite or postgres)", cfg.StoreType)
	}
}
