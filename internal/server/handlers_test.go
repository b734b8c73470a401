package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querypulse/querypulse/internal/events"
	"github.com/querypulse/querypulse/internal/stats"
	"github.com/querypulse/querypulse/internal/usage"
)

// fakeStore is an in-memory events.Store for handler tests.
type fakeStore struct {
	dialect    string
	db         *sql.DB
	records    []usage.QueryRecord
	historyErr error

	logged    []*events.Event
	favorites []*events.Favorite
}

func newFakeStore() *fakeStore {
	return &fakeStore{dialect: events.DialectSQLite}
}

func (f *fakeStore) LogEvent(_ context.Context, ev *events.Event) error {
	if ev.ID == "" {
		ev.ID = fmt.Sprintf("ev-%d", len(f.logged)+1)
	}
	f.logged = append(f.logged, ev)
	return nil
}

func (f *fakeStore) QueryHistory(_ context.Context, _ int) ([]usage.QueryRecord, error) {
	return f.records, f.historyErr
}

func (f *fakeStore) SaveFavorite(_ context.Context, fav *events.Favorite) error {
	if fav.ID == "" {
		fav.ID = fmt.Sprintf("fav-%d", len(f.favorites)+1)
	}
	f.favorites = append(f.favorites, fav)
	return nil
}

func (f *fakeStore) ListFavorites(_ context.Context, userID string) ([]*events.Favorite, error) {
	var out []*events.Favorite
	for _, fav := range f.favorites {
		if fav.UserID == userID {
			out = append(out, fav)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFavorite(_ context.Context, id, userID string) error {
	for i, fav := range f.favorites {
		if fav.ID == id && fav.UserID == userID {
			f.favorites = append(f.favorites[:i], f.favorites[i+1:]...)
			return nil
		}
	}
	return events.ErrNotFound
}

func (f *fakeStore) Migrate() error  { return nil }
func (f *fakeStore) Dialect() string { return f.dialect }
func (f *fakeStore) Close() error    { return nil }
func (f *fakeStore) DB() *sql.DB     { return f.db }

func newTestServer(store events.Store) http.Handler {
	return New(Config{Store: store, WindowDays: 30}).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestServer(newFakeStore())

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestUsageEndpoint(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	store.records = []usage.QueryRecord{
		{SQL: "SELECT a, b FROM t1", Timestamp: now},
		{SQL: "SELECT a FROM t1 JOIN t2 ON 1=1", Timestamp: now},
	}
	h := newTestServer(store)

	rec := doRequest(t, h, http.MethodGet, "/api/usage?days=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		WindowDays int                      `json:"window_days"`
		Tables     []usage.TableCount       `json:"tables"`
		Columns    []usage.ColumnCount      `json:"columns"`
		Pairs      []usage.TableColumnCount `json:"table_columns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 0, resp.WindowDays)
	require.NotEmpty(t, resp.Tables)
	// t1 is referenced by both queries and sorts first.
	assert.Equal(t, "t1", resp.Tables[0].Table)
	assert.Equal(t, 2, resp.Tables[0].Count)
	assert.NotEmpty(t, resp.Pairs)
}

func TestUsageEndpointBadParams(t *testing.T) {
	h := newTestServer(newFakeStore())

	for _, path := range []string{"/api/usage?days=abc", "/api/usage?days=-1", "/api/usage?top=x"} {
		rec := doRequest(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestUsageEndpointStoreError(t *testing.T) {
	store := newFakeStore()
	store.historyErr = errors.New("boom")
	h := newTestServer(store)

	rec := doRequest(t, h, http.MethodGet, "/api/usage", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatsUnavailableOnSQLite(t *testing.T) {
	h := newTestServer(newFakeStore())

	for _, path := range []string{
		"/api/stats/nps",
		"/api/stats/visitors",
		"/api/stats/engagement",
		"/api/stats/retention",
	} {
		rec := doRequest(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}

func TestStatsDegradeToEmptyOnQueryError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Postgres dialect attaches the stats layer; the mock has no
	// expectations, so every query errors and the handler falls back to
	// an empty result instead of a 5xx.
	store := newFakeStore()
	store.dialect = events.DialectPostgres
	store.db = db
	h := newTestServer(store)

	rec := doRequest(t, h, http.MethodGet, "/api/stats/nps", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res stats.NPSResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Zero(t, res.Total)

	rec = doRequest(t, h, http.MethodGet, "/api/stats/retention", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestLogEventEndpoint(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(store)

	rec := doRequest(t, h, http.MethodPost, "/api/events", map[string]any{
		"event_type": events.EventPageVisit,
		"user_id":    "u1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.logged, 1)
	assert.Contains(t, rec.Body.String(), store.logged[0].ID)

	// Missing type is rejected before hitting the store.
	rec = doRequest(t, h, http.MethodPost, "/api/events", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, store.logged, 1)
}

func TestFavoritesEndpoints(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(store)

	// user_id is required for listing.
	rec := doRequest(t, h, http.MethodGet, "/api/favorites", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Incomplete favorite is rejected.
	rec = doRequest(t, h, http.MethodPost, "/api/favorites", map[string]any{
		"user_id": "u1", "question": "top tables?",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/favorites", map[string]any{
		"user_id":   "u1",
		"question":  "top tables?",
		"sql_query": "SELECT name FROM tables",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created events.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doRequest(t, h, http.MethodGet, "/api/favorites?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []events.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	// Empty list serializes as [], not null.
	rec = doRequest(t, h, http.MethodGet, "/api/favorites?user_id=nobody", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = doRequest(t, h, http.MethodDelete, "/api/favorites/"+created.ID+"?user_id=u1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/favorites/"+created.ID+"?user_id=u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
