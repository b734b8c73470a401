package events

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/querypulse/querypulse/internal/usage"
	_ "modernc.org/sqlite" // cgo-free sqlite driver
)

// SQLiteStore implements Store on SQLite for local deployments.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (or creates) a SQLite event store.
// Use ":memory:" for an in-memory database.
// If logger is nil, a discard logger is used.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_time_format=sqlite"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would get its own in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Dialect reports the backing database dialect.
func (s *SQLiteStore) Dialect() string { return DialectSQLite }

// DB exposes the raw handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LogEvent appends one event to user_events.
func (s *SQLiteStore) LogEvent(ctx context.Context, ev *Event) error {
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
func (s *SQLiteStore) QueryHistory(ctx context.Context, windowDays int) ([]usage.QueryRecord, error) {
	query := `
		SELECT json_extract(metadata, '$.sql_query'), timestamp
		FROM user_events
		WHERE event_type = 'sql_response'
		  AND json_extract(metadata, '$.sql_query') IS NOT NULL`
	args := []any{}
	if windowDays > 0 {
		query += ` AND timestamp >= ?`
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
func (s *SQLiteStore) SaveFavorite(ctx context.Context, fav *Favorite) error {
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
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fav.ID, fav.UserID, nullIfEmpty(fav.UserEmail),
		fav.Question, fav.SQLQuery, fav.CreatedAt, fav.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	return nil
}

// ListFavorites returns a user's favorites, newest first.
func (s *SQLiteStore) ListFavorites(ctx context.Context, userID string) ([]*Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_email, question, sql_query, created_at, updated_at
		FROM user_favorites
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFavorites(rows)
}

// DeleteFavorite removes one favorite owned by the user.
func (s *SQLiteStore) DeleteFavorite(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_favorites WHERE id = ? AND user_id = ?`, id, userID)
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
