package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/querypulse/querypulse/internal/usage"
)

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// PostgresStore implements Store on PostgreSQL via the pgx stdlib driver.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenPostgres connects to Postgres and verifies the connection.
// If logger is nil, a discard logger is used.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := buildPostgresDSN(cfg)
	logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// Dialect reports the backing database dialect.
func (s *PostgresStore) Dialect() string { return DialectPostgres }

// DB exposes the raw handle for the stats layer.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LogEvent appends one event to user_events.
func (s *PostgresStore) LogEvent(ctx context.Context, ev *Event) error {
	if ev.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	metadata, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode event metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_events (
			id, event_type, user_id, user_email, user_name,
			conversation_id, message_id, feedback_type,
			session_id, metadata, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.Type, ev.UserID,
		nullIfEmpty(ev.UserEmail), nullIfEmpty(ev.UserName),
		nullIfEmpty(ev.ConversationID), nullIfEmpty(ev.MessageID),
		nullIfEmpty(ev.FeedbackType), nullIfEmpty(ev.SessionID),
		metadata, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log %s event: %w", ev.Type, err)
	}

	s.logger.Debug("logged event", "type", ev.Type, "user", ev.UserID)
	return nil
}

// QueryHistory returns the generated SQL of sql_response events within
// the lookback window.
func (s *PostgresStore) QueryHistory(ctx context.Context, windowDays int) ([]usage.QueryRecord, error) {
	query := `
		SELECT metadata->>'sql_query', timestamp
		FROM user_events
		WHERE event_type = 'sql_response'
		  AND metadata->>'sql_query' IS NOT NULL`
	args := []any{}
	if windowDays > 0 {
		query += ` AND timestamp >= $1`
		args = append(args, time.Now().UTC().AddDate(0, 0, -windowDays))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []usage.QueryRecord
	for rows.Next() {
		var rec usage.QueryRecord
		if err := rows.Scan(&rec.SQL, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return records, nil
}

// SaveFavorite stores a question/SQL pair.
func (s *PostgresStore) SaveFavorite(ctx context.Context, fav *Favorite) error {
	if fav.ID == "" {
		fav.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if fav.CreatedAt.IsZero() {
		fav.CreatedAt = now
	}
	fav.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_favorites (
			id, user_id, user_email, question, sql_query, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fav.ID, fav.UserID, nullIfEmpty(fav.UserEmail),
		fav.Question, fav.SQLQuery, fav.CreatedAt, fav.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	return nil
}

// ListFavorites returns a user's favorites, newest first.
func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]*Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_email, question, sql_query, created_at, updated_at
		FROM user_favorites
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFavorites(rows)
}

// DeleteFavorite removes one favorite owned by the user.
func (s *PostgresStore) DeleteFavorite(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_favorites WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// marshalMetadata encodes metadata as JSON, or NULL when empty.
func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanFavorites reads favorite rows, tolerating NULL emails.
func scanFavorites(rows *sql.Rows) ([]*Favorite, error) {
	var favorites []*Favorite
	for rows.Next() {
		fav := &Favorite{}
		var email sql.NullString
		if err := rows.Scan(&fav.ID, &fav.UserID, &email, &fav.Question, &fav.SQLQuery, &fav.CreatedAt, &fav.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		fav.UserEmail = email.String
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorites: %w", err)
	}
	return favorites, nil
}
