package capture

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/repositories"
	"github.com/Ravi16329/English-Teacher/usecase"
)

// Assembler implements the audio-capture capability. Chunks pushed in by the
// audio source are accumulated and, when capture stops, persisted through
// the conversation store and attached to the most recent user message.
type Assembler struct {
	store  *usecase.ConversationStore
	events repositories.CaptureEvents
	logger *zap.Logger

	mu     sync.Mutex
	active bool
	buffer bytes.Buffer
}

var _ repositories.AudioCapture = (*Assembler)(nil)

// NewAssembler creates an audio-capture assembler over the store
func NewAssembler(store *usecase.ConversationStore, events repositories.CaptureEvents, logger *zap.Logger) *Assembler {
	return &Assembler{store: store, events: events, logger: logger}
}

// Start begins a new capture, discarding any previous buffer
func (a *Assembler) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = true
	a.buffer.Reset()
	return nil
}

// Feed appends a captured chunk
func (a *Assembler) Feed(data []byte) {
	a.mu.Lock()
	if a.active {
		a.buffer.Write(data)
	}
	a.mu.Unlock()

	if a.events.OnChunk != nil {
		a.events.OnChunk(data)
	}
}

// Stop assembles the captured audio, persists it and delivers the recording
// reference. Stopping with no captured audio is a no-op.
func (a *Assembler) Stop() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	data := make([]byte, a.buffer.Len())
	copy(data, a.buffer.Bytes())
	a.buffer.Reset()
	a.mu.Unlock()

	if len(data) == 0 {
		return
	}

	rec, err := a.store.AttachAudio(data)
	if err != nil {
		a.logger.Warn("Failed to attach captured audio", zap.Error(err))
		return
	}

	a.logger.Info("Audio capture assembled",
		zap.String("recordingID", rec.ID),
		zap.Int("sizeBytes", rec.SizeBytes))

	if a.events.OnStopped != nil {
		a.events.OnStopped(rec)
	}
}
