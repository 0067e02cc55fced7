package entities

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryLimit caps how many closed conversations are retained
const HistoryLimit = 50

// Message represents a single utterance or system reply in a conversation.
// User messages optionally carry the assessment enrichments; messages are
// immutable once appended except for late audio attachment.
type Message struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	Correction *string     `json:"correction,omitempty"`
	Score      *int        `json:"score,omitempty"`
	Feedback   *string     `json:"feedback,omitempty"`
	AudioID    *string     `json:"audio_id,omitempty"`
}

// NewMessage creates a message with a fresh identifier and timestamp
func NewMessage(role MessageRole, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// AudioRecording references captured audio owned by a conversation.
// StorageKey is the retrieval handle in the key-value store.
type AudioRecording struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int       `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAudioRecording creates a recording reference for assembled audio data
func NewAudioRecording(sizeBytes int) AudioRecording {
	id := uuid.NewString()
	return AudioRecording{
		ID:         id,
		StorageKey: "audio:" + id,
		SizeBytes:  sizeBytes,
		CreatedAt:  time.Now(),
	}
}

// Conversation represents one practice session between the user and the system
type Conversation struct {
	ID         string           `json:"id"`
	Topic      Topic            `json:"topic"`
	Difficulty Difficulty       `json:"difficulty"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Messages   []Message        `json:"messages"`
	Recordings []AudioRecording `json:"recordings,omitempty"`
}

// NewConversation creates an open conversation with a time-derived identifier
func NewConversation(topic Topic, difficulty Difficulty) *Conversation {
	if difficulty == "" {
		difficulty = DifficultyBeginner
	}
	now := time.Now()
	return &Conversation{
		ID:         fmt.Sprintf("conv_%d", now.UnixNano()),
		Topic:      topic,
		Difficulty: difficulty,
		StartedAt:  now,
		Messages:   make([]Message, 0),
	}
}

// AppendMessage appends a message in arrival order
func (c *Conversation) AppendMessage(m Message) {
	c.Messages = append(c.Messages, m)
}

// AttachAudio records the recording reference and links it to the most recent
// user message. Returns false when no user message exists yet; the recording
// is kept as an orphan in that case.
func (c *Conversation) AttachAudio(rec AudioRecording) bool {
	c.Recordings = append(c.Recordings, rec)
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == MessageRoleUser {
			audioID := rec.ID
			c.Messages[i].AudioID = &audioID
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the conversation. Readers outside the store
// lock work on the copy so concurrent appends to the live record cannot race
// with them.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.EndedAt != nil {
		ended := *c.EndedAt
		out.EndedAt = &ended
	}
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	if c.Recordings != nil {
		out.Recordings = make([]AudioRecording, len(c.Recordings))
		copy(out.Recordings, c.Recordings)
	}
	return &out
}

// Close sets the end timestamp if it is not set yet
func (c *Conversation) Close() {
	if c.EndedAt == nil {
		now := time.Now()
		c.EndedAt = &now
	}
}

// IsClosed reports whether the conversation has ended
func (c *Conversation) IsClosed() bool {
	return c.EndedAt != nil
}

// DurationMinutes returns the conversation length in whole minutes, floored.
// Open conversations are measured against the current time.
func (c *Conversation) DurationMinutes() int {
	end := time.Now()
	if c.EndedAt != nil {
		end = *c.EndedAt
	}
	return int(end.Sub(c.StartedAt).Minutes())
}

// AverageScore returns the rounded mean pronunciation score over user
// messages that carry one, or 0 when none do.
func (c *Conversation) AverageScore() int {
	sum := 0
	count := 0
	for _, m := range c.Messages {
		if m.Role == MessageRoleUser && m.Score != nil {
			sum += *m.Score
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}

// CorrectionCount returns how many user messages received a correction
func (c *Conversation) CorrectionCount() int {
	count := 0
	for _, m := range c.Messages {
		if m.Role == MessageRoleUser && m.Correction != nil {
			count++
		}
	}
	return count
}

// Preview returns the first user utterance, falling back to the first message
func (c *Conversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role == MessageRoleUser {
			return m.Text
		}
	}
	if len(c.Messages) > 0 {
		return c.Messages[0].Text
	}
	return ""
}

// Matches reports whether the conversation matches a topic filter and a
// case-insensitive substring query over its message texts. Empty filter
// values match everything.
func (c *Conversation) Matches(topic Topic, query string) bool {
	if topic != "" && c.Topic != topic {
		return false
	}
	if query == "" {
		return true
	}
	needle := strings.ToLower(query)
	if strings.Contains(strings.ToLower(string(c.Topic)), needle) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Text), needle) {
			return true
		}
	}
	return false
}

// Validate validates the conversation data
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("conversation id is required")
	}
	if _, ok := ParseTopic(string(c.Topic)); !ok {
		return errors.New("unknown topic")
	}
	return nil
}

// History is the bounded, most-recent-first archive of closed conversations
type History struct {
	Conversations []*Conversation `json:"conversations"`
}

// Prepend inserts a conversation at the front, evicting the oldest entries
// beyond HistoryLimit
func (h *History) Prepend(c *Conversation) {
	h.Conversations = append([]*Conversation{c}, h.Conversations...)
	if len(h.Conversations) > HistoryLimit {
		h.Conversations = h.Conversations[:HistoryLimit]
	}
}

// Len returns the number of archived conversations
func (h *History) Len() int {
	return len(h.Conversations)
}
