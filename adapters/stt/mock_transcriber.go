package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

// MockTranscriber is a scripted transcription capability for tests and
// local demos. Transcripts are emitted through EmitTranscript or derived
// from fed audio size.
type MockTranscriber struct {
	events repositories.TranscriberEvents
	logger *zap.Logger

	// StartErr makes Start fail, for exercising denied-capability paths
	StartErr error

	mu        sync.Mutex
	active    bool
	fedBytes  int
	startN    int
	stopN     int
}

var _ repositories.Transcriber = (*MockTranscriber)(nil)

// NewMockTranscriber creates a scripted transcriber
func NewMockTranscriber(events repositories.TranscriberEvents, logger *zap.Logger) *MockTranscriber {
	return &MockTranscriber{events: events, logger: logger}
}

// Start begins a mock listening session
func (m *MockTranscriber) Start(ctx context.Context) error {
	if m.StartErr != nil {
		return m.StartErr
	}

	m.mu.Lock()
	m.active = true
	m.fedBytes = 0
	m.startN++
	m.mu.Unlock()

	m.logger.Info("Mock transcription started")
	if m.events.OnListening != nil {
		m.events.OnListening(true)
	}
	return nil
}

// Feed accumulates audio; the mock transcript depends on the total size
func (m *MockTranscriber) Feed(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		m.fedBytes += len(data)
	}
	return nil
}

// Stop ends the session, emitting a size-derived transcript when audio was fed
func (m *MockTranscriber) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	m.stopN++
	fed := m.fedBytes
	m.mu.Unlock()

	m.logger.Info("Mock transcription stopped", zap.Int("fedBytes", fed))
	if m.events.OnListening != nil {
		m.events.OnListening(false)
	}

	if fed == 0 {
		return
	}
	transcript := "Hello"
	switch {
	case fed > 10000:
		transcript = "I really enjoy practicing English conversation every single day."
	case fed > 1000:
		transcript = "I like learning English."
	}
	if m.events.OnFinalTranscript != nil {
		m.events.OnFinalTranscript(transcript)
	}
}

// EmitTranscript delivers a finalized utterance as if it were recognized
func (m *MockTranscriber) EmitTranscript(text string) {
	if m.events.OnFinalTranscript != nil {
		m.events.OnFinalTranscript(text)
	}
}

// EmitError delivers a capability error
func (m *MockTranscriber) EmitError(kind domain.ErrorKind, err error) {
	if m.events.OnError != nil {
		m.events.OnError(kind, err)
	}
}

// Starts returns how many times Start succeeded
func (m *MockTranscriber) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startN
}

// Active reports whether a mock session is in flight
func (m *MockTranscriber) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
