package speech

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

// MockSpeaker is a scripted speech-output capability. By default each Speak
// immediately emits started and ended; tests can take manual control to
// drive the events themselves.
type MockSpeaker struct {
	events repositories.SpeakerEvents
	logger *zap.Logger

	// Manual suppresses automatic started/ended emission
	Manual bool
	// SpeakErr makes Speak fail
	SpeakErr error

	mu       sync.Mutex
	speaking bool
	spoken   []string
	cancels  int
}

var _ repositories.Speaker = (*MockSpeaker)(nil)

// NewMockSpeaker creates a scripted speaker
func NewMockSpeaker(events repositories.SpeakerEvents, logger *zap.Logger) *MockSpeaker {
	return &MockSpeaker{events: events, logger: logger}
}

// Speak records the text and, unless manual, emits started and ended
func (m *MockSpeaker) Speak(ctx context.Context, text string) error {
	if m.SpeakErr != nil {
		return m.SpeakErr
	}

	m.mu.Lock()
	m.speaking = true
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()

	m.logger.Info("Mock speaking", zap.String("text", text))

	if !m.Manual {
		m.EmitStarted()
		m.EmitEnded()
	}
	return nil
}

// CancelIfSpeaking stops in-flight speech without emitting ended
func (m *MockSpeaker) CancelIfSpeaking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speaking {
		m.speaking = false
		m.cancels++
	}
}

// EmitStarted delivers the speech-started event
func (m *MockSpeaker) EmitStarted() {
	if m.events.OnStarted != nil {
		m.events.OnStarted()
	}
}

// EmitEnded delivers the speech-ended event and marks playback done
func (m *MockSpeaker) EmitEnded() {
	m.mu.Lock()
	m.speaking = false
	m.mu.Unlock()
	if m.events.OnEnded != nil {
		m.events.OnEnded()
	}
}

// Spoken returns every text passed to Speak, in order
func (m *MockSpeaker) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Cancels returns how many times in-flight speech was cancelled
func (m *MockSpeaker) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}
