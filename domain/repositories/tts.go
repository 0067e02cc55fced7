package repositories

import (
	"context"

	"github.com/Ravi16329/English-Teacher/domain"
)

// SpeakerEvents receives speech-output lifecycle callbacks
type SpeakerEvents struct {
	OnStarted func()
	OnEnded   func()
	OnError   func(kind domain.ErrorKind, err error)
}

// Speaker abstracts the speech-output capability
type Speaker interface {
	// Speak starts speaking the text; OnStarted/OnEnded bracket playback
	Speak(ctx context.Context, text string) error
	// CancelIfSpeaking stops in-flight speech without emitting OnEnded
	CancelIfSpeaking()
}
