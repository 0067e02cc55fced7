package repositories

import (
	"context"

	"github.com/Ravi16329/English-Teacher/domain/entities"
)

// CaptureEvents receives audio-capture lifecycle callbacks
type CaptureEvents struct {
	// OnChunk observes each captured chunk
	OnChunk func(data []byte)
	// OnStopped delivers the assembled recording reference once capture ends
	OnStopped func(rec entities.AudioRecording)
}

// AudioCapture abstracts the audio-capture capability. Chunks are pushed in
// by the environment-specific audio source and assembled on Stop.
type AudioCapture interface {
	Start(ctx context.Context) error
	Feed(data []byte)
	Stop()
}
