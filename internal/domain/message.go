package domain

import (
	"fmt"
	"time"
)

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is sent to the /chat endpoint.
type ChatRequest struct {
	Model     string         `json:"model"`
	Messages  []Message      `json:"messages,omitempty"`
	Stream    *bool          `json:"stream,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// ChatMetrics are the completion statistics carried by the terminal record
// of a chat stream. Durations are nanoseconds.
type ChatMetrics struct {
	TotalDuration      int64 `json:"total_duration"`
	LoadDuration       int64 `json:"load_duration"`
	PromptEvalCount    int64 `json:"prompt_eval_count"`
	PromptEvalDuration int64 `json:"prompt_eval_duration"`
	EvalCount          int64 `json:"eval_count"`
	EvalDuration       int64 `json:"eval_duration"`
}

// ChatResponse is one record of a chat completion stream. Partial records
// carry a message fragment with Done=false; the terminal record has Done=true
// and the completion metrics.
type ChatResponse struct {
	Model      string  `json:"model"`
	CreatedAt  string  `json:"created_at"`
	Message    Message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason,omitempty"`

	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int64 `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int64 `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// IsTerminal reports whether r is the final record of its stream.
func (r ChatResponse) IsTerminal() bool { return r.Done }

// Metrics returns the completion statistics. Only terminal records carry them.
func (r ChatResponse) Metrics() ChatMetrics {
	return ChatMetrics{
		TotalDuration:      r.TotalDuration,
		LoadDuration:       r.LoadDuration,
		PromptEvalCount:    r.PromptEvalCount,
		PromptEvalDuration: r.PromptEvalDuration,
		EvalCount:          r.EvalCount,
		EvalDuration:       r.EvalDuration,
	}
}

// CreatedTime parses CreatedAt. The service sends RFC 3339 timestamps with
// nanosecond precision but the raw string is kept as received.
func (r ChatResponse) CreatedTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", r.CreatedAt, err)
	}
	return t, nil
}

// TokensPerSecond derives the generation rate from the eval metrics.
// Returns 0 when the duration is unknown.
func (m ChatMetrics) TokensPerSecond() float64 {
	if m.EvalDuration <= 0 {
		return 0
	}
	return float64(m.EvalCount) / (float64(m.EvalDuration) / float64(time.Second))
}

// Conversation holds an ordered sequence of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is a Message persisted in a conversation.
type StoredMessage struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Message        Message      `json:"message"`
	Metrics        *ChatMetrics `json:"metrics,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
