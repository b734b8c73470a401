package stats

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db, nil), mock
}

func TestNPS(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_events")).
		WillReturnRows(sqlmock.NewRows([]string{"promoters", "detractors", "total"}).
			AddRow(70, 20, 100))

	result, err := svc.NPS(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 70, result.Promoters)
	assert.Equal(t, 20, result.Detractors)
	assert.Equal(t, 100, result.Total)
	assert.InDelta(t, 50.0, result.NPS, 0.01)
	assert.InDelta(t, 70.0, result.PromoterPercentage, 0.01)
	assert.InDelta(t, 20.0, result.DetractorPercentage, 0.01)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNPSNoFeedback(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_events")).
		WillReturnRows(sqlmock.NewRows([]string{"promoters", "detractors", "total"}).
			AddRow(0, 0, 0))

	result, err := svc.NPS(context.Background())
	require.NoError(t, err)

	// Zero feedback must not divide by zero.
	assert.Zero(t, result.NPS)
	assert.Zero(t, result.PromoterPercentage)
}

func TestUniqueVisitorsUnknownPeriodFallsBack(t *testing.T) {
	svc, mock := newMockService(t)

	// An unknown period runs the quarterly query.
	mock.ExpectQuery(regexp.QuoteMeta("DATE_TRUNC('quarter', timestamp)")).
		WillReturnRows(sqlmock.NewRows([]string{"quarter", "unique_visitors"}).
			AddRow("2026-07-01", 42))

	series, err := svc.UniqueVisitors(context.Background(), "fortnightly")
	require.NoError(t, err)

	assert.Equal(t, "fortnightly", series.Period)
	require.Len(t, series.Data, 1)
	assert.Equal(t, 42, series.Data[0].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopUsers(t *testing.T) {
	svc, mock := newMockService(t)

	cols := []string{"user_id", "user_email", "conversations", "messages",
		"positive_feedback", "negative_feedback", "total_events"}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY total_events DESC")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", "u1@example.com", 3, 12, 2, 0, 17).
			AddRow("u2", nil, 1, 4, 0, 1, 6))

	users, err := svc.TopUsers(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "u1@example.com", users[0].UserEmail)
	assert.Equal(t, 17, users[0].TotalActivity)
	// Missing email falls back to the user id.
	assert.Equal(t, "u2", users[1].UserEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopUsersDefaultLimit(t *testing.T) {
	svc, mock := newMockService(t)

	cols := []string{"user_id", "user_email", "conversations", "messages",
		"positive_feedback", "negative_feedback", "total_events"}
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := svc.TopUsers(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagement(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_events")).
		WillReturnRows(sqlmock.NewRows([]string{"total_users", "total_conversations", "total_messages", "total_feedback"}).
			AddRow(50, 8, 20, 5))

	m, err := svc.Engagement(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, m.TotalUsers)
	assert.InDelta(t, 2.5, m.AvgMessagesPerConversation, 0.001)
}

func TestConversations(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WITH conversation_stats AS")).
		WillReturnRows(sqlmock.NewRows([]string{"total_conversations", "avg_messages", "conversations_with_feedback", "median_messages"}).
			AddRow(10, 3.333, 4, 3.0))

	m, err := svc.Conversations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, m.TotalConversations)
	assert.InDelta(t, 3.33, m.AvgMessagesPerConversation, 0.001)
	assert.InDelta(t, 40.0, m.FeedbackRate, 0.001)
	assert.InDelta(t, 3.0, m.MedianMessages, 0.001)
}

func TestRetention(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WITH user_cohorts AS")).
		WillReturnRows(sqlmock.NewRows([]string{"cohort_week", "cohort_size", "retained_users"}).
			AddRow("2026-08-17", 8, 2).
			AddRow("2026-08-10", 0, 0))

	cohorts, err := svc.Retention(context.Background())
	require.NoError(t, err)
	require.Len(t, cohorts, 2)

	assert.InDelta(t, 25.0, cohorts[0].RetentionRate, 0.001)
	// Empty cohort keeps a zero rate instead of dividing by zero.
	assert.Zero(t, cohorts[1].RetentionRate)
}

func TestPopularQuestionsSkipsEmpty(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("metadata->>'question'")).
		WillReturnRows(sqlmock.NewRows([]string{"question", "count"}).
			AddRow("what were sales last month?", 12).
			AddRow("", 3))

	questions, err := svc.PopularQuestions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, 12, questions[0].Count)
}

func TestActivityByHour(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("EXTRACT(HOUR FROM timestamp)")).
		WillReturnRows(sqlmock.NewRows([]string{"hour", "activity_count"}).
			AddRow(9.0, 14).
			AddRow(17.0, 3))

	hours, err := svc.ActivityByHour(context.Background())
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, 9, hours[0].Hour)
	assert.Equal(t, 14, hours[0].Count)
}
