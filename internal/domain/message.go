package domain

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// instantLayout renders instants as UTC with millisecond precision (2006-01-02T15:04:05.000Z).
const instantLayout = "2006-01-02T15:04:05.000Z"

// FormatInstant renders t as an ISO-8601 UTC instant with milliseconds.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

// Message is one extracted chat turn. Field order is the JSON field order.
type Message struct {
	Index     int    `json:"index"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Transcript is the ordered list of messages found on a page. Empty means nothing to save.
type Transcript []Message

// Empty reports whether no messages were found.
func (t Transcript) Empty() bool { return len(t) == 0 }

// Document is the ephemeral result of formatting a transcript for one save.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Body        string
}
