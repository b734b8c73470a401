package stats

// VisitorBucket is one period's unique visitor count.
type VisitorBucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// VisitorSeries is unique visitor counts for a reporting period.
type VisitorSeries struct {
	Period string          `json:"period"`
	Data   []VisitorBucket `json:"data"`
}

// NPSResult is the Net Promoter Score computed from feedback events.
// NPS = (% promoters) - (% detractors).
type NPSResult struct {
	NPS                 float64 `json:"nps"`
	Promoters           int     `json:"promoters"`
	Detractors          int     `json:"detractors"`
	Total               int     `json:"total"`
	PromoterPercentage  float64 `json:"promoter_percentage"`
	DetractorPercentage float64 `json:"detractor_percentage"`
}

// UserActivity is one user's activity totals.
type UserActivity struct {
	UserID           string `json:"user_id"`
	UserEmail        string `json:"user_email"`
	Conversations    int    `json:"conversations"`
	Messages         int    `json:"messages"`
	PositiveFeedback int    `json:"positive_feedback"`
	NegativeFeedback int    `json:"negative_feedback"`
	TotalActivity    int    `json:"total_activity"`
}

// EngagementMetrics are overall engagement totals.
type EngagementMetrics struct {
	TotalUsers                 int     `json:"total_users"`
	TotalConversations         int     `json:"total_conversations"`
	TotalMessages              int     `json:"total_messages"`
	TotalFeedback              int     `json:"total_feedback"`
	AvgMessagesPerConversation float64 `json:"avg_messages_per_conversation"`
}

// HourActivity is the activity count for one hour of the day.
type HourActivity struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// ConversationMetrics are conversation-level aggregates.
type ConversationMetrics struct {
	TotalConversations         int     `json:"total_conversations"`
	AvgMessagesPerConversation float64 `json:"avg_messages_per_conversation"`
	ConversationsWithFeedback  int     `json:"conversations_with_feedback"`
	FeedbackRate               float64 `json:"feedback_rate"`
	MedianMessages             float64 `json:"median_messages"`
}

// RetentionCohort is one weekly cohort's retention numbers.
type RetentionCohort struct {
	CohortWeek    string  `json:"cohort_week"`
	CohortSize    int     `json:"cohort_size"`
	RetainedUsers int     `json:"retained_users"`
	RetentionRate float64 `json:"retention_rate"`
}

// FeedbackDay is one day's positive/negative feedback counts.
type FeedbackDay struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
}

// QuestionCount is a question and the number of conversations opened with it.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}
