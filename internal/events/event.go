package events

import "time"

// Event types recorded by the chat application.
const (
	EventPageVisit         = "page_visit"
	EventStartConversation = "start_conversation"
	EventSendMessage       = "send_message"
	EventFeedback          = "feedback"
	EventSQLResponse       = "sql_response"
)

// Feedback types for EventFeedback events.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// MetadataSQLQuery is the metadata key holding the generated SQL text on
// sql_response events. Query history mining reads this key.
const MetadataSQLQuery = "sql_query"

// Event is one row of the append-only user_events log. Only Type and
// UserID are required; everything else is optional context.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"event_type"`
	UserID         string         `json:"user_id"`
	UserEmail      string         `json:"user_email,omitempty"`
	UserName       string         `json:"user_name,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	MessageID      string         `json:"message_id,omitempty"`
	FeedbackType   string         `json:"feedback_type,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Favorite is a saved question/SQL pair.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserEmail string    `json:"user_email,omitempty"`
	Question  string    `json:"question"`
	SQLQuery  string    `json:"sql_query"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
