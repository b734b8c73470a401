// Package events provides the user_events event log behind the usage and
// stats layers. Two backends implement the same Store interface: Postgres
// for production deployments and SQLite for local ones. The schema is
// managed by embedded goose migrations, one directory per dialect.
package events

import (
	"context"
	"database/sql"
	"errors"

	"github.com/querypulse/querypulse/internal/usage"
)

// Store dialect names.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the event log interface consumed by the CLI and the server.
type Store interface {
	// LogEvent appends one event. A missing ID or Timestamp is filled in.
	LogEvent(ctx context.Context, ev *Event) error

	// QueryHistory returns the SQL text and timestamp of sql_response
	// events within the lookback window. windowDays == 0 is unbounded.
	// Events without a sql_query metadata entry are excluded.
	QueryHistory(ctx context.Context, windowDays int) ([]usage.QueryRecord, error)

	// SaveFavorite stores a question/SQL pair for a user.
	SaveFavorite(ctx context.Context, fav *Favorite) error

	// ListFavorites returns a user's favorites, newest first.
	ListFavorites(ctx context.Context, userID string) ([]*Favorite, error)

	// DeleteFavorite removes one favorite owned by the user.
	// Returns ErrNotFound if no such favorite exists.
	DeleteFavorite(ctx context.Context, id, userID string) error

	// Migrate applies pending schema migrations.
	Migrate() error

	// Dialect reports the backing database dialect.
	Dialect() string

	Close() error
}

// QueryableStore is implemented by stores that expose their raw database
// handle. The stats layer uses it to run its own aggregation SQL.
type QueryableStore interface {
	DB() *sql.DB
}
