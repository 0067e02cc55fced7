package usecase

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/entities"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

// Persistence keys
const (
	keyHistory            = "history"
	keyActiveConversation = "active_conversation"
)

// ConversationStore exclusively owns the history and the active conversation.
// Every mutation is written through to the key-value capability; a write
// failure is reported but the in-memory state stays authoritative.
type ConversationStore struct {
	kv     repositories.KeyValue
	logger *zap.Logger

	mu      sync.Mutex
	history entities.History
	active  *entities.Conversation
}

// NewConversationStore creates a store over the given key-value capability
func NewConversationStore(kv repositories.KeyValue, logger *zap.Logger) *ConversationStore {
	return &ConversationStore{kv: kv, logger: logger}
}

// LoadOnStartup restores the history and any active conversation from their
// persisted snapshots. Corrupt or missing data yields empty state and never
// raises to the caller.
func (s *ConversationStore) LoadOnStartup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = entities.History{}
	s.active = nil

	if raw, ok := s.kv.Get(keyHistory); ok {
		var history entities.History
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			s.logger.Warn("Discarding corrupt history snapshot", zap.Error(err))
		} else {
			if len(history.Conversations) > entities.HistoryLimit {
				history.Conversations = history.Conversations[:entities.HistoryLimit]
			}
			s.history = history
		}
	}

	if raw, ok := s.kv.Get(keyActiveConversation); ok {
		var active entities.Conversation
		if err := json.Unmarshal([]byte(raw), &active); err != nil {
			s.logger.Warn("Discarding corrupt active conversation snapshot", zap.Error(err))
		} else {
			s.active = &active
		}
	}

	s.logger.Info("Conversation store loaded",
		zap.Int("historyCount", s.history.Len()),
		zap.Bool("hasActive", s.active != nil))
}

// CreateActive allocates a new active conversation, fully replacing any
// previous active record without archiving it. Archiving first is the
// caller's responsibility.
func (s *ConversationStore) CreateActive(topic entities.Topic, difficulty entities.Difficulty) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = entities.NewConversation(topic, difficulty)
	return s.active, s.persistActive()
}

// Active returns a deep copy of the single open conversation, or nil. The
// copy can be read and marshaled without holding the store lock.
func (s *ConversationStore) Active() *entities.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// AppendMessage appends to the active conversation in arrival order and
// persists the snapshot. The returned error only reflects the write-through.
func (s *ConversationStore) AppendMessage(m entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return fmt.Errorf("no active conversation")
	}
	s.active.AppendMessage(m)
	return s.persistActive()
}

// AttachAudio persists the captured audio under the recording's storage key
// and links it to the most recent user message of the active conversation
func (s *ConversationStore) AttachAudio(data []byte) (entities.AudioRecording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := entities.NewAudioRecording(len(data))
	if s.active == nil {
		return rec, fmt.Errorf("no active conversation")
	}

	if err := s.kv.Set(rec.StorageKey, base64.StdEncoding.EncodeToString(data)); err != nil {
		s.logger.Warn("Failed to persist audio recording",
			zap.String("recordingID", rec.ID),
			zap.Error(err))
	}

	if !s.active.AttachAudio(rec) {
		s.logger.Warn("Audio recording has no matching user message, keeping as orphan",
			zap.String("recordingID", rec.ID))
	}
	return rec, s.persistActive()
}

// GetAudio retrieves captured audio by its storage key
func (s *ConversationStore) GetAudio(storageKey string) ([]byte, bool) {
	raw, ok := s.kv.Get(storageKey)
	if !ok {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		s.logger.Warn("Discarding corrupt audio recording", zap.String("key", storageKey), zap.Error(err))
		return nil, false
	}
	return data, true
}

// CloseAndArchive closes the conversation, prepends it to the history
// (evicting the oldest beyond the cap), persists the history and clears the
// active snapshot
func (s *ConversationStore) CloseAndArchive(c *entities.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Close()
	s.history.Prepend(c)
	if s.active != nil && s.active.ID == c.ID {
		s.active = nil
	}

	historyErr := s.persistHistory()
	if err := s.kv.Delete(keyActiveConversation); err != nil {
		s.logger.Warn("Failed to clear active conversation snapshot", zap.Error(err))
	}
	return historyErr
}

// History returns the archived conversations, most recent first
func (s *ConversationStore) History() []*entities.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entities.Conversation, len(s.history.Conversations))
	copy(out, s.history.Conversations)
	return out
}

// Search filters the history by topic and a case-insensitive substring query
func (s *ConversationStore) Search(topic entities.Topic, query string) []*entities.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entities.Conversation, 0)
	for _, c := range s.history.Conversations {
		if c.Matches(topic, query) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns a deep copy of an archived or active conversation by
// identifier
func (s *ConversationStore) Find(id string) (*entities.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.ID == id {
		return s.active.Clone(), true
	}
	for _, c := range s.history.Conversations {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return nil, false
}

// DiscardActive drops the active conversation without archiving it and
// clears its persisted snapshot
func (s *ConversationStore) DiscardActive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = nil
	if err := s.kv.Delete(keyActiveConversation); err != nil {
		s.logger.Warn("Failed to clear active conversation snapshot", zap.Error(err))
	}
}

// ClearAll irreversibly empties the history, the active snapshot and all
// audio recordings. The caller must obtain explicit user confirmation before
// invoking this.
func (s *ConversationStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	audioKeys := make([]string, 0)
	collect := func(c *entities.Conversation) {
		for _, rec := range c.Recordings {
			audioKeys = append(audioKeys, rec.StorageKey)
		}
	}
	for _, c := range s.history.Conversations {
		collect(c)
	}
	if s.active != nil {
		collect(s.active)
	}

	s.history = entities.History{}
	s.active = nil

	var firstErr error
	for _, key := range append(audioKeys, keyHistory, keyActiveConversation) {
		if err := s.kv.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.logger.Info("Cleared all conversation data", zap.Int("audioRecordings", len(audioKeys)))
	return firstErr
}

// persistActive writes the active conversation snapshot; caller holds the lock
func (s *ConversationStore) persistActive() error {
	if s.active == nil {
		return nil
	}
	raw, err := json.Marshal(s.active)
	if err != nil {
		return fmt.Errorf("failed to encode active conversation: %w", err)
	}
	if err := s.kv.Set(keyActiveConversation, string(raw)); err != nil {
		s.logger.Warn("Failed to persist active conversation",
			zap.String("conversationID", s.active.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// persistHistory writes the history snapshot; caller holds the lock
func (s *ConversationStore) persistHistory() error {
	raw, err := json.Marshal(s.history)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.kv.Set(keyHistory, string(raw)); err != nil {
		s.logger.Warn("Failed to persist history", zap.Error(err))
		return err
	}
	return nil
}
