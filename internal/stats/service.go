// Package stats computes engagement analytics over the user_events log.
// The queries use Postgres syntax (FILTER, DATE_TRUNC, INTERVAL,
// PERCENTILE_CONT) and run against the event store's raw handle; SQLite
// deployments do not get this layer.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
)

// Service runs the analytics queries.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a stats service over a Postgres handle.
// If logger is nil, a discard logger is used.
func New(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{db: db, logger: logger}
}

// visitorQueries maps a reporting period to its bucketed visitor query.
var visitorQueries = map[string]string{
	"daily": `
		SELECT DATE(timestamp) AS date,
		       COUNT(DISTINCT user_id) AS unique_visitors
		FROM user_events
		WHERE event_type = 'page_visit'
		  AND timestamp >= CURRENT_DATE - INTERVAL '30 days'
		GROUP BY DATE(timestamp)
		ORDER BY date DESC`,
	"weekly": `
		SELECT DATE_TRUNC('week', timestamp) AS week,
		       COUNT(DISTINCT user_id) AS unique_visitors
		FROM user_events
		WHERE event_type = 'page_visit'
		  AND timestamp >= CURRENT_DATE - INTERVAL '12 weeks'
		GROUP BY DATE_TRUNC('week', timestamp)
		ORDER BY week DESC`,
	"monthly": `
		SELECT DATE_TRUNC('month', timestamp) AS month,
		       COUNT(DISTINCT user_id) AS unique_visitors
		FROM user_events
		WHERE event_type = 'page_visit'
		  AND timestamp >= CURRENT_DATE - INTERVAL '12 months'
		GROUP BY DATE_TRUNC('month', timestamp)
		ORDER BY month DESC`,
	"quarterly": `
		SELECT DATE_TRUNC('quarter', timestamp) AS quarter,
		       COUNT(DISTINCT user_id) AS unique_visitors
		FROM user_events
		WHERE event_type = 'page_visit'
		  AND timestamp >= CURRENT_DATE - INTERVAL '2 years'
		GROUP BY DATE_TRUNC('quarter', timestamp)
		ORDER BY quarter DESC`,
}

// UniqueVisitors returns unique visitor counts bucketed by period
// (daily, weekly, monthly, or quarterly; unknown values fall back to
// quarterly, matching the dashboard's historical behavior).
func (s *Service) UniqueVisitors(ctx context.Context, period string) (*VisitorSeries, error) {
	query, ok := visitorQueries[period]
	if !ok {
		query = visitorQueries["quarterly"]
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique visitors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	series := &VisitorSeries{Period: period, Data: []VisitorBucket{}}
	for rows.Next() {
		var bucket VisitorBucket
		if err := rows.Scan(&bucket.Date, &bucket.Count); err != nil {
			return nil, fmt.Errorf("failed to scan visitor row: %w", err)
		}
		series.Data = append(series.Data, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return series, nil
}

// NPS computes the Net Promoter Score from feedback events.
func (s *Service) NPS(ctx context.Context) (*NPSResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE feedback_type = 'positive') AS promoters,
		       COUNT(*) FILTER (WHERE feedback_type = 'negative') AS detractors,
		       COUNT(*) AS total
		FROM user_events
		WHERE event_type = 'feedback'`)

	result := &NPSResult{}
	if err := row.Scan(&result.Promoters, &result.Detractors, &result.Total); err != nil {
		return nil, fmt.Errorf("failed to compute NPS: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	total := float64(result.Total)
	result.NPS = round1(float64(result.Promoters-result.Detractors) / total * 100)
	result.PromoterPercentage = round1(float64(result.Promoters) / total * 100)
	result.DetractorPercentage = round1(float64(result.Detractors) / total * 100)
	return result, nil
}

// TopUsers returns the most active users by conversations + messages.
func (s *Service) TopUsers(ctx context.Context, limit int) ([]UserActivity, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id,
		       user_email,
		       COUNT(*) FILTER (WHERE event_type = 'start_conversation') AS conversations,
		       COUNT(*) FILTER (WHERE event_type = 'send_message') AS messages,
		       COUNT(*) FILTER (WHERE event_type = 'feedback' AND feedback_type = 'positive') AS positive_feedback,
		       COUNT(*) FILTER (WHERE event_type = 'feedback' AND feedback_type = 'negative') AS negative_feedback,
		       COUNT(*) AS total_events
		FROM user_events
		WHERE event_type IN ('start_conversation', 'send_message', 'feedback')
		GROUP BY user_id, user_email
		ORDER BY total_events DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []UserActivity
	for rows.Next() {
		var u UserActivity
		var email sql.NullString
		if err := rows.Scan(&u.UserID, &email, &u.Conversations, &u.Messages,
			&u.PositiveFeedback, &u.NegativeFeedback, &u.TotalActivity); err != nil {
			return nil, fmt.Errorf("failed to scan top user row: %w", err)
		}
		u.UserEmail = email.String
		if u.UserEmail == "" {
			u.UserEmail = u.UserID
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Engagement returns overall engagement totals.
func (s *Service) Engagement(ctx context.Context) (*EngagementMetrics, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FILTER (WHERE event_type = 'page_visit') AS total_users,
		       COUNT(*) FILTER (WHERE event_type = 'start_conversation') AS total_conversations,
		       COUNT(*) FILTER (WHERE event_type = 'send_message') AS total_messages,
		       COUNT(*) FILTER (WHERE event_type = 'feedback') AS total_feedback
		FROM user_events`)

	m := &EngagementMetrics{}
	if err := row.Scan(&m.TotalUsers, &m.TotalConversations, &m.TotalMessages, &m.TotalFeedback); err != nil {
		return nil, fmt.Errorf("failed to query engagement metrics: %w", err)
	}

	conversations := m.TotalConversations
	if conversations == 0 {
		conversations = 1
	}
	m.AvgMessagesPerConversation = round2(float64(m.TotalMessages) / float64(conversations))
	return m, nil
}

// ActivityByHour returns activity distribution by hour of day.
func (s *Service) ActivityByHour(ctx context.Context) ([]HourActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(HOUR FROM timestamp) AS hour,
		       COUNT(*) AS activity_count
		FROM user_events
		WHERE event_type IN ('start_conversation', 'send_message')
		GROUP BY EXTRACT(HOUR FROM timestamp)
		ORDER BY hour`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hours []HourActivity
	for rows.Next() {
		var h HourActivity
		var hour float64 // EXTRACT returns numeric
		if err := rows.Scan(&hour, &h.Count); err != nil {
			return nil, fmt.Errorf("failed to scan hourly activity row: %w", err)
		}
		h.Hour = int(hour)
		hours = append(hours, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hours, nil
}

// Conversations returns conversation-level aggregates.
func (s *Service) Conversations(ctx context.Context) (*ConversationMetrics, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH conversation_stats AS (
			SELECT conversation_id,
			       COUNT(*) FILTER (WHERE event_type = 'send_message') AS message_count,
			       COUNT(*) FILTER (WHERE event_type = 'feedback') AS has_feedback
			FROM user_events
			WHERE conversation_id IS NOT NULL
			GROUP BY conversation_id
		)
		SELECT COUNT(*) AS total_conversations,
		       COALESCE(AVG(message_count), 0) AS avg_messages,
		       COUNT(*) FILTER (WHERE has_feedback > 0) AS conversations_with_feedback,
		       COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY message_count), 0) AS median_messages
		FROM conversation_stats`)

	m := &ConversationMetrics{}
	var avgMessages, medianMessages float64
	if err := row.Scan(&m.TotalConversations, &avgMessages, &m.ConversationsWithFeedback, &medianMessages); err != nil {
		return nil, fmt.Errorf("failed to query conversation metrics: %w", err)
	}

	m.AvgMessagesPerConversation = round2(avgMessages)
	m.MedianMessages = medianMessages
	if m.TotalConversations > 0 {
		m.FeedbackRate = round1(float64(m.ConversationsWithFeedback) / float64(m.TotalConversations) * 100)
	}
	return m, nil
}

// Retention returns weekly cohort retention over the trailing 12 weeks.
func (s *Service) Retention(ctx context.Context) ([]RetentionCohort, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH user_cohorts AS (
			SELECT user_id,
			       DATE_TRUNC('week', MIN(timestamp)) AS cohort_week
			FROM user_events
			WHERE event_type = 'page_visit'
			GROUP BY user_id
		),
		user_activity AS (
			SELECT uc.user_id,
			       uc.cohort_week,
			       DATE_TRUNC('week', ue.timestamp) AS activity_week
			FROM user_cohorts uc
			JOIN user_events ue ON uc.user_id = ue.user_id
			WHERE ue.event_type = 'page_visit'
		)
		SELECT cohort_week,
		       COUNT(DISTINCT user_id) AS cohort_size,
		       COUNT(DISTINCT CASE WHEN activity_week > cohort_week THEN user_id END) AS retained_users
		FROM user_activity
		WHERE cohort_week >= CURRENT_DATE - INTERVAL '12 weeks'
		GROUP BY cohort_week
		ORDER BY cohort_week DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cohorts []RetentionCohort
	for rows.Next() {
		var c RetentionCohort
		if err := rows.Scan(&c.CohortWeek, &c.CohortSize, &c.RetainedUsers); err != nil {
			return nil, fmt.Errorf("failed to scan retention row: %w", err)
		}
		if c.CohortSize > 0 {
			c.RetentionRate = round1(float64(c.RetainedUsers) / float64(c.CohortSize) * 100)
		}
		cohorts = append(cohorts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cohorts, nil
}

// FeedbackTrend returns daily positive/negative feedback over 30 days.
func (s *Service) FeedbackTrend(ctx context.Context) ([]FeedbackDay, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(timestamp) AS date,
		       COUNT(*) FILTER (WHERE feedback_type = 'positive') AS positive,
		       COUNT(*) FILTER (WHERE feedback_type = 'negative') AS negative
		FROM user_events
		WHERE event_type = 'feedback'
		  AND timestamp >= CURRENT_DATE - INTERVAL '30 days'
		GROUP BY DATE(timestamp)
		ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback trend: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var days []FeedbackDay
	for rows.Next() {
		var d FeedbackDay
		if err := rows.Scan(&d.Date, &d.Positive, &d.Negative); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return days, nil
}

// PopularQuestions returns the most common conversation-opening questions.
func (s *Service) PopularQuestions(ctx context.Context) ([]QuestionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metadata->>'question' AS question,
		       COUNT(*) AS count
		FROM user_events
		WHERE event_type = 'start_conversation'
		  AND metadata IS NOT NULL
		  AND metadata->>'question' IS NOT NULL
		GROUP BY metadata->>'question'
		ORDER BY count DESC
		LIMIT 20`)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var questions []QuestionCount
	for rows.Next() {
		var q QuestionCount
		if err := rows.Scan(&q.Question, &q.Count); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		if q.Question != "" {
			questions = append(questions, q)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
