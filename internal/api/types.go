package api

import (
	"time"

	"github.com/Ravi16329/English-Teacher/domain/entities"
)

// Mode is the UI surface the client is showing
type Mode string

const (
	ModeConversation Mode = "conversation"
	ModeHistory      Mode = "history"
)

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SessionResponse carries a freshly issued client token
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// TopicsResponse lists the selectable practice topics
type TopicsResponse struct {
	Topics []entities.Topic `json:"topics"`
}

// ConversationStats are the derived per-conversation figures
type ConversationStats struct {
	DurationMinutes int `json:"duration_minutes"`
	AverageScore    int `json:"average_score"`
	CorrectionCount int `json:"correction_count"`
}

// ConversationSummary is one history list entry
type ConversationSummary struct {
	ID           string              `json:"id"`
	Topic        entities.Topic      `json:"topic"`
	Difficulty   entities.Difficulty `json:"difficulty"`
	StartedAt    time.Time           `json:"started_at"`
	EndedAt      *time.Time          `json:"ended_at,omitempty"`
	Preview      string              `json:"preview"`
	MessageCount int                 `json:"message_count"`
	Stats        ConversationStats   `json:"stats"`
}

// ConversationDetail is the full record plus derived stats
type ConversationDetail struct {
	Conversation *entities.Conversation `json:"conversation"`
	Stats        ConversationStats      `json:"stats"`
}

// ModeRequest switches the UI mode
type ModeRequest struct {
	Mode Mode `json:"mode"`
}

// ModeResponse reports the current UI mode
type ModeResponse struct {
	Mode Mode `json:"mode"`
}

// StartConversationRequest opens a conversation on a topic
type StartConversationRequest struct {
	Difficulty string `json:"difficulty,omitempty"`
}

func statsFor(c *entities.Conversation) ConversationStats {
	return ConversationStats{
		DurationMinutes: c.DurationMinutes(),
		AverageScore:    c.AverageScore(),
		CorrectionCount: c.CorrectionCount(),
	}
}

func summarize(c *entities.Conversation) ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Topic:        c.Topic,
		Difficulty:   c.Difficulty,
		StartedAt:    c.StartedAt,
		EndedAt:      c.EndedAt,
		Preview:      c.Preview(),
		MessageCount: len(c.Messages),
		Stats:        statsFor(c),
	}
}
