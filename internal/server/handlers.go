package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/querypulse/querypulse/internal/events"
	"github.com/querypulse/querypulse/internal/stats"
	"github.com/querypulse/querypulse/internal/usage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type usageResponse struct {
	WindowDays   int                      `json:"window_days"`
	Tables       []usage.TableCount       `json:"tables"`
	Columns      []usage.ColumnCount      `json:"columns"`
	TableColumns []usage.TableColumnCount `json:"table_columns"`
	Skipped      int                      `json:"skipped_records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUsage runs the usage aggregation over stored query history.
// ?days overrides the configured window (0 = full history), ?top
// truncates each list (0 = all).
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	days, ok := s.queryInt(w, r, "days", s.windowDays)
	if !ok {
		return
	}
	top, ok := s.queryInt(w, r, "top", 0)
	if !ok {
		return
	}

	report, err := s.aggregator.AggregateHistory(r.Context(), s.store, days)
	if err != nil {
		s.logger.Error("usage aggregation failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to aggregate usage"})
		return
	}

	s.writeJSON(w, http.StatusOK, usageResponse{
		WindowDays:   days,
		Tables:       report.TopTables(top),
		Columns:      report.TopColumns(top),
		TableColumns: report.TopTableColumns(top),
		Skipped:      report.Skipped,
	})
}

func (s *Server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	var ev events.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid event payload"})
		return
	}
	if ev.Type == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "event_type is required"})
		return
	}

	if err := s.store.LogEvent(r.Context(), &ev); err != nil {
		s.logger.Error("failed to log event", "type", ev.Type, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to log event"})
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"id": ev.ID})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	favorites, err := s.store.ListFavorites(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list favorites", "user_id", userID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list favorites"})
		return
	}
	if favorites == nil {
		favorites = []*events.Favorite{}
	}
	s.writeJSON(w, http.StatusOK, favorites)
}

func (s *Server) handleSaveFavorite(w http.ResponseWriter, r *http.Request) {
	var fav events.Favorite
	if err := json.NewDecoder(r.Body).Decode(&fav); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid favorite payload"})
		return
	}
	if fav.UserID == "" || fav.Question == "" || fav.SQLQuery == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id, question, and sql_query are required"})
		return
	}

	if err := s.store.SaveFavorite(r.Context(), &fav); err != nil {
		s.logger.Error("failed to save favorite", "user_id", fav.UserID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save favorite"})
		return
	}

	s.writeJSON(w, http.StatusCreated, &fav)
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	err := s.store.DeleteFavorite(r.Context(), id, userID)
	switch {
	case errors.Is(err, events.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "favorite not found"})
	case err != nil:
		s.logger.Error("failed to delete favorite", "id", id, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete favorite"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Stats handlers. Each delegates to one analytics query; the 501 path
// covers SQLite deployments, where the stats layer is not attached. A
// failed query degrades to an empty result so one broken panel never
// takes down the whole dashboard.

func (s *Server) handleVisitors(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	s.respondStats(w, r, &stats.VisitorSeries{Period: period, Data: []stats.VisitorBucket{}},
		func(ctx context.Context) (any, error) {
			return s.stats.UniqueVisitors(ctx, period)
		})
}

func (s *Server) handleNPS(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, &stats.NPSResult{}, func(ctx context.Context) (any, error) {
		return s.stats.NPS(ctx)
	})
}

func (s *Server) handleTopUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	limit, ok := s.queryInt(w, r, "limit", 10)
	if !ok {
		return
	}
	s.respondStats(w, r, []stats.UserActivity{}, func(ctx context.Context) (any, error) {
		return s.stats.TopUsers(ctx, limit)
	})
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, &stats.EngagementMetrics{}, func(ctx context.Context) (any, error) {
		return s.stats.Engagement(ctx)
	})
}

func (s *Server) handleActivityByHour(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, []stats.HourActivity{}, func(ctx context.Context) (any, error) {
		return s.stats.ActivityByHour(ctx)
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, &stats.ConversationMetrics{}, func(ctx context.Context) (any, error) {
		return s.stats.Conversations(ctx)
	})
}

func (s *Server) handleRetention(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, []stats.RetentionCohort{}, func(ctx context.Context) (any, error) {
		return s.stats.Retention(ctx)
	})
}

func (s *Server) handleFeedbackTrend(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, []stats.FeedbackDay{}, func(ctx context.Context) (any, error) {
		return s.stats.FeedbackTrend(ctx)
	})
}

func (s *Server) handlePopularQuestions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStats(w) {
		return
	}
	s.respondStats(w, r, []stats.QuestionCount{}, func(ctx context.Context) (any, error) {
		return s.stats.PopularQuestions(ctx)
	})
}

func (s *Server) requireStats(w http.ResponseWriter) bool {
	if s.stats == nil {
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "stats require a postgres event store"})
		return false
	}
	return true
}

func (s *Server) respondStats(w http.ResponseWriter, r *http.Request, fallback any, fn func(ctx context.Context) (any, error)) {
	result, err := fn(r.Context())
	if err != nil {
		s.logger.Warn("stats query failed", "path", r.URL.Path, "error", err)
		result = fallback
	}
	s.writeJSON(w, http.StatusOK, result)
}

// queryInt parses an integer query parameter, writing a 400 and returning
// ok=false on malformed input.
func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
