package repositories

import (
	"context"

	"github.com/Ravi16329/English-Teacher/domain"
)

// TranscriberEvents receives transcription lifecycle callbacks. Callbacks
// may fire from adapter goroutines; consumers serialize them.
type TranscriberEvents struct {
	// OnFinalTranscript delivers one finalized utterance. Interim results
	// are suppressed by the adapter.
	OnFinalTranscript func(text string)
	// OnError reports a classified capability failure
	OnError func(kind domain.ErrorKind, err error)
	// OnListening reports listening-state changes
	OnListening func(active bool)
}

// Transcriber abstracts a continuous speech recognition capability
type Transcriber interface {
	// Start begins recognition; acquisition errors are returned classified
	// as *domain.CapabilityError
	Start(ctx context.Context) error
	// Feed pushes captured audio into the recognizer. Bindings that
	// transcribe at the source ignore it.
	Feed(data []byte) error
	// Stop ends recognition; a finalized utterance still in flight is
	// delivered through OnFinalTranscript
	Stop()
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
