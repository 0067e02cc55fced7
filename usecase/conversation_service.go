package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain"
	"github.com/Ravi16329/English-Teacher/domain/entities"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

// ConversationState is the turn-taking state of the controller
type ConversationState string

const (
	StateIdle       ConversationState = "idle"
	StateListening  ConversationState = "listening"
	StateProcessing ConversationState = "processing"
	StateSpeaking   ConversationState = "speaking"
)

// Turn-taking delays. Thinking models the pause before the system replies;
// resume is the gap before listening re-engages after the system spoke.
const (
	DefaultThinkingDelay = 1200 * time.Millisecond
	DefaultResumeDelay   = 500 * time.Millisecond
)

// TurnConfig tunes the controller's scheduled delays
type TurnConfig struct {
	ThinkingDelay time.Duration
	ResumeDelay   time.Duration
}

func (c TurnConfig) withDefaults() TurnConfig {
	if c.ThinkingDelay <= 0 {
		c.ThinkingDelay = DefaultThinkingDelay
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = DefaultResumeDelay
	}
	return c
}

// StateSnapshot is the read-only view of the controller exposed to the UI
type StateSnapshot struct {
	State          ConversationState `json:"state"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Topic          entities.Topic    `json:"topic,omitempty"`
	TurnActive     bool              `json:"turn_active"`
	Notice         *domain.Notice    `json:"notice,omitempty"`
}

// ConversationService drives the idle → listening → processing → speaking
// cycle. Every external event is processed to completion before the next one
// is handled; capability calls happen outside the lock so adapter callbacks
// can re-enter through the event handlers.
type ConversationService struct {
	assessment *AssessmentService
	responder  *ResponseService
	store      *ConversationStore
	clock      clock.Clock
	config     TurnConfig
	logger     *zap.Logger

	mu            sync.Mutex
	state         ConversationState
	conversation  *entities.Conversation
	turnActive    bool
	generation    uint64
	pendingSpeech bool
	thinkTimer    *clock.Timer
	resumeTimer   *clock.Timer
	notice        *domain.Notice
	subscribers   []chan StateSnapshot

	transcriber repositories.Transcriber
	speaker     repositories.Speaker
}

// NewConversationService creates the turn-taking controller
func NewConversationService(
	assessment *AssessmentService,
	responder *ResponseService,
	store *ConversationStore,
	clk clock.Clock,
	config TurnConfig,
	logger *zap.Logger,
) *ConversationService {
	if clk == nil {
		clk = clock.New()
	}
	return &ConversationService{
		assessment: assessment,
		responder:  responder,
		store:      store,
		clock:      clk,
		config:     config.withDefaults(),
		logger:     logger,
		state:      StateIdle,
	}
}

// BindCapabilities attaches the environment-specific speech capabilities.
// Passing nil detaches them.
func (s *ConversationService) BindCapabilities(t repositories.Transcriber, sp repositories.Speaker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcriber = t
	s.speaker = sp
}

// TranscriberEvents returns the callback set a transcriber binding should use
func (s *ConversationService) TranscriberEvents() repositories.TranscriberEvents {
	return repositories.TranscriberEvents{
		OnFinalTranscript: s.HandleTranscript,
		OnError:           s.HandleCapabilityError,
		OnListening:       s.HandleListeningChanged,
	}
}

// SpeakerEvents returns the callback set a speaker binding should use
func (s *ConversationService) SpeakerEvents() repositories.SpeakerEvents {
	return repositories.SpeakerEvents{
		OnStarted: s.HandleSpeechStarted,
		OnEnded:   s.HandleSpeechEnded,
		OnError:   s.HandleCapabilityError,
	}
}

// StartConversation creates a new active conversation for the topic and
// speaks the opening line. An existing conversation with messages is
// archived first.
func (s *ConversationService) StartConversation(topic entities.Topic, difficulty entities.Difficulty) error {
	s.mu.Lock()

	s.stopTimersLocked()
	s.generation++

	if s.conversation != nil && len(s.conversation.Messages) > 0 {
		if err := s.store.CloseAndArchive(s.conversation); err != nil {
			s.setNoticeLocked(domain.ErrorTransientIO, "Could not save the previous conversation.")
		}
	}

	conversation, err := s.store.CreateActive(topic, difficulty)
	if err != nil {
		// Reported, not fatal: the in-memory record is still usable.
		s.setNoticeLocked(domain.ErrorTransientIO, "Conversation could not be saved, continuing without persistence.")
	}
	s.conversation = conversation
	s.turnActive = true
	s.state = StateIdle

	greeting := entities.NewMessage(entities.MessageRoleSystem, s.responder.Greet(topic))
	if err := s.store.AppendMessage(greeting); err != nil {
		s.setNoticeLocked(domain.ErrorTransientIO, "Message could not be saved.")
	}

	s.logger.Info("Conversation started",
		zap.String("conversationID", conversation.ID),
		zap.String("topic", string(topic)))

	s.publishLocked()
	speaker := s.speaker
	s.pendingSpeech = speaker != nil
	s.mu.Unlock()

	s.speak(speaker, greeting.Text)
	return nil
}

// BeginListening requests the transcription capability and enters listening.
// A missing conversation is auto-created on the random topic. Acquisition
// failures surface as transient notices and leave the state idle.
func (s *ConversationService) BeginListening() error {
	s.mu.Lock()
	if s.conversation == nil {
		conversation, err := s.store.CreateActive(entities.TopicRandom, entities.DifficultyBeginner)
		if err != nil {
			s.setNoticeLocked(domain.ErrorTransientIO, "Conversation could not be saved, continuing without persistence.")
		}
		s.conversation = conversation
	}
	s.turnActive = true

	if s.state == StateListening {
		s.mu.Unlock()
		return nil
	}

	transcriber := s.transcriber
	speaker := s.speaker
	s.mu.Unlock()

	if speaker != nil {
		// Listening and speaking are mutually exclusive.
		speaker.CancelIfSpeaking()
	}

	if transcriber == nil {
		err := domain.NewCapabilityError(domain.ErrorCapabilityUnavailable, nil)
		s.HandleCapabilityError(domain.ErrorCapabilityUnavailable, err)
		return err
	}

	if err := transcriber.Start(context.Background()); err != nil {
		kind := domain.ErrorCapabilityUnavailable
		if capErr, ok := err.(*domain.CapabilityError); ok {
			kind = capErr.Kind
		}
		s.HandleCapabilityError(kind, err)
		return err
	}

	s.HandleListeningChanged(true)
	return nil
}

// HandleTranscript processes one finalized utterance. Empty transcripts are
// ignored; assessment faults degrade to defaults and never block recording
// the message.
func (s *ConversationService) HandleTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.conversation == nil || !s.turnActive || s.state != StateListening {
		s.logger.Debug("Dropping transcript outside of a listening turn",
			zap.String("state", string(s.state)))
		s.mu.Unlock()
		return
	}

	assessment := s.assessment.Assess(text)
	message := entities.NewMessage(entities.MessageRoleUser, text)
	message.Correction = assessment.Correction
	score := assessment.Score
	feedback := assessment.Feedback
	message.Score = &score
	message.Feedback = &feedback

	if err := s.store.AppendMessage(message); err != nil {
		s.setNoticeLocked(domain.ErrorTransientIO, "Message could not be saved.")
	}

	s.state = StateProcessing
	s.scheduleThinkingLocked(s.conversation.ID, text)

	s.logger.Info("Transcript recorded",
		zap.String("conversationID", s.conversation.ID),
		zap.Int("score", score),
		zap.Bool("corrected", assessment.Correction != nil))

	s.publishLocked()
	transcriber := s.transcriber
	s.mu.Unlock()

	if transcriber != nil {
		transcriber.Stop()
	}
}

// HandleListeningChanged is driven by the transcription capability
func (s *ConversationService) HandleListeningChanged(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active {
		if s.conversation == nil || !s.turnActive {
			// Acquisition completed after a pause or end; do not resurrect
			// the turn.
			return
		}
		s.state = StateListening
	} else if s.state == StateListening {
		s.state = StateIdle
	}
	s.publishLocked()
}

// HandleSpeechStarted is driven by the speech-output capability
func (s *ConversationService) HandleSpeechStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pendingSpeech {
		return
	}
	s.pendingSpeech = false
	s.state = StateSpeaking
	s.publishLocked()
}

// HandleSpeechEnded transitions back to idle and, while the conversation is
// still active, re-enters listening after the resume delay
func (s *ConversationService) HandleSpeechEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSpeaking {
		return
	}
	s.state = StateIdle
	if s.conversation != nil && s.turnActive {
		s.scheduleResumeLocked(s.conversation.ID)
	}
	s.publishLocked()
}

// HandleCapabilityError converts a capability failure into a transient
// notice. Conversation state is never corrupted by these.
func (s *ConversationService) HandleCapabilityError(kind domain.ErrorKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case domain.ErrorPermissionDenied:
		s.setNoticeLocked(kind, "Microphone access was denied. Allow access and try again.")
	case domain.ErrorCapabilityUnavailable:
		s.setNoticeLocked(kind, "Speech features are not available in this environment.")
	default:
		s.setNoticeLocked(kind, "Something went wrong, please try again.")
	}

	s.logger.Warn("Capability error",
		zap.String("kind", string(kind)),
		zap.Error(err))

	if s.state == StateListening || s.state == StateSpeaking {
		s.state = StateIdle
	}
	s.pendingSpeech = false
	s.publishLocked()
}

// Pause stops any in-flight listening or speaking and marks the turn loop
// inactive without closing the conversation
func (s *ConversationService) Pause() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.generation++
	s.turnActive = false
	s.pendingSpeech = false
	s.state = StateIdle
	s.publishLocked()
	transcriber := s.transcriber
	speaker := s.speaker
	s.mu.Unlock()

	if transcriber != nil {
		transcriber.Stop()
	}
	if speaker != nil {
		speaker.CancelIfSpeaking()
	}
	s.logger.Info("Conversation paused")
}

// EndConversation closes and archives the conversation when it has at least
// one message; an empty conversation is discarded without archiving
func (s *ConversationService) EndConversation() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.generation++
	s.turnActive = false
	s.pendingSpeech = false
	s.state = StateIdle

	conversation := s.conversation
	s.conversation = nil

	if conversation != nil {
		if len(conversation.Messages) > 0 {
			if err := s.store.CloseAndArchive(conversation); err != nil {
				s.setNoticeLocked(domain.ErrorTransientIO, "Conversation could not be archived.")
			}
			s.logger.Info("Conversation archived",
				zap.String("conversationID", conversation.ID),
				zap.Int("messages", len(conversation.Messages)))
		} else {
			s.store.DiscardActive()
			s.logger.Info("Discarding empty conversation",
				zap.String("conversationID", conversation.ID))
		}
	}

	s.publishLocked()
	transcriber := s.transcriber
	speaker := s.speaker
	s.mu.Unlock()

	if transcriber != nil {
		transcriber.Stop()
	}
	if speaker != nil {
		speaker.CancelIfSpeaking()
	}
}

// Teardown ends the conversation and closes all subscriptions
func (s *ConversationService) Teardown() {
	s.EndConversation()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

// Snapshot returns the current read-only controller state. Expired notices
// are dismissed.
func (s *ConversationService) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notice != nil && s.notice.Expired(s.clock.Now()) {
		s.notice = nil
	}
	return s.snapshotLocked()
}

// Subscribe returns a channel of state snapshots published on every
// transition. Slow subscribers miss intermediate snapshots rather than
// blocking the controller.
func (s *ConversationService) Subscribe() <-chan StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan StateSnapshot, 16)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription obtained from Subscribe and closes its
// channel. Unknown or already-removed channels are ignored.
func (s *ConversationService) Unsubscribe(ch <-chan StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// scheduleThinkingLocked arms the cancellable thinking timer for the current
// utterance; caller holds the lock
func (s *ConversationService) scheduleThinkingLocked(conversationID, userText string) {
	gen := s.generation
	s.thinkTimer = s.clock.AfterFunc(s.config.ThinkingDelay, func() {
		s.mu.Lock()
		if gen != s.generation || s.conversation == nil ||
			s.conversation.ID != conversationID || s.state != StateProcessing {
			// Stale timer from a paused or closed conversation.
			s.mu.Unlock()
			return
		}

		reply := entities.NewMessage(entities.MessageRoleSystem,
			s.responder.Respond(s.conversation.Topic, userText))
		if err := s.store.AppendMessage(reply); err != nil {
			s.setNoticeLocked(domain.ErrorTransientIO, "Message could not be saved.")
		}

		s.publishLocked()
		speaker := s.speaker
		s.pendingSpeech = speaker != nil
		s.mu.Unlock()

		s.speak(speaker, reply.Text)
	})
}

// scheduleResumeLocked arms the cancellable resume-listening timer keyed to
// the conversation identity; caller holds the lock
func (s *ConversationService) scheduleResumeLocked(conversationID string) {
	gen := s.generation
	s.resumeTimer = s.clock.AfterFunc(s.config.ResumeDelay, func() {
		s.mu.Lock()
		stale := gen != s.generation || s.conversation == nil ||
			s.conversation.ID != conversationID || !s.turnActive
		s.mu.Unlock()
		if stale {
			return
		}
		if err := s.BeginListening(); err != nil {
			s.logger.Warn("Failed to resume listening", zap.Error(err))
		}
	})
}

// speak invokes the speech-output capability outside the lock
func (s *ConversationService) speak(speaker repositories.Speaker, text string) {
	if speaker == nil {
		s.HandleCapabilityError(domain.ErrorCapabilityUnavailable, nil)
		return
	}
	if err := speaker.Speak(context.Background(), text); err != nil {
		kind := domain.ErrorCapabilityUnavailable
		if capErr, ok := err.(*domain.CapabilityError); ok {
			kind = capErr.Kind
		}
		s.HandleCapabilityError(kind, err)
	}
}

// stopTimersLocked cancels both scheduled timers; caller holds the lock
func (s *ConversationService) stopTimersLocked() {
	if s.thinkTimer != nil {
		s.thinkTimer.Stop()
		s.thinkTimer = nil
	}
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
}

// setNoticeLocked records a transient user-visible notice; caller holds the
// lock
func (s *ConversationService) setNoticeLocked(kind domain.ErrorKind, message string) {
	notice := domain.NewNotice(kind, message)
	s.notice = &notice
}

func (s *ConversationService) snapshotLocked() StateSnapshot {
	snapshot := StateSnapshot{
		State:      s.state,
		TurnActive: s.turnActive,
		Notice:     s.notice,
	}
	if s.conversation != nil {
		snapshot.ConversationID = s.conversation.ID
		snapshot.Topic = s.conversation.Topic
	}
	return snapshot
}

// publishLocked fans the current snapshot out to subscribers without
// blocking; caller holds the lock
func (s *ConversationService) publishLocked() {
	snapshot := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
