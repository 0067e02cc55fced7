package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

// GoogleTranscriber implements the transcription capability over Google
// Cloud Speech streaming recognition. Interim results are suppressed; only
// finalized utterances are delivered.
type GoogleTranscriber struct {
	config repositories.AudioConfig
	events repositories.TranscriberEvents
	logger *zap.Logger

	mu            sync.Mutex
	client        *speech.Client
	stream        speechpb.Speech_StreamingRecognizeClient
	active        bool
	audioReceived bool
}

var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a Google Cloud backed transcriber
func NewGoogleTranscriber(config repositories.AudioConfig, events repositories.TranscriberEvents, logger *zap.Logger) *GoogleTranscriber {
	return &GoogleTranscriber{config: config, events: events, logger: logger}
}

// Start opens the streaming recognition session
func (g *GoogleTranscriber) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return nil
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return domain.NewCapabilityError(domain.ErrorCapabilityUnavailable,
			fmt.Errorf("failed to create speech client: %w", err))
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return domain.NewCapabilityError(domain.ErrorCapabilityUnavailable,
			fmt.Errorf("failed to create streaming recognize: %w", err))
	}

	encoding, err := audioEncoding(g.config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return domain.NewCapabilityError(domain.ErrorCapabilityUnavailable, err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(g.config.SampleRate),
					LanguageCode:    g.config.Language,
				},
				// Continuous recognition, final results only.
				InterimResults: false,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return domain.NewCapabilityError(domain.ErrorCapabilityUnavailable,
			fmt.Errorf("failed to send streaming config: %w", err))
	}

	g.client = client
	g.stream = stream
	g.active = true
	g.audioReceived = false

	go g.receiveResults(stream, client)

	if g.events.OnListening != nil {
		g.events.OnListening(true)
	}
	return nil
}

// Feed pushes captured audio into the recognition stream
func (g *GoogleTranscriber) Feed(data []byte) error {
	g.mu.Lock()
	stream := g.stream
	active := g.active
	if active && len(data) > 0 {
		g.audioReceived = true
	}
	g.mu.Unlock()

	if !active || len(data) == 0 {
		return nil
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop ends the session; a finalized utterance still in flight is delivered
// through the events before the receiver exits
func (g *GoogleTranscriber) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return
	}
	g.active = false

	if err := g.stream.CloseSend(); err != nil {
		g.logger.Warn("Failed to close recognition stream", zap.Error(err))
	}
	g.stream = nil
	if !g.audioReceived {
		g.logger.Warn("Recognition session ended without receiving audio")
	}

	if g.events.OnListening != nil {
		g.events.OnListening(false)
	}
}

// receiveResults forwards finalized transcripts until the stream ends
func (g *GoogleTranscriber) receiveResults(stream speechpb.Speech_StreamingRecognizeClient, client *speech.Client) {
	defer client.Close()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			g.mu.Lock()
			active := g.active
			g.mu.Unlock()
			if active && g.events.OnError != nil {
				g.events.OnError(domain.ErrorCapabilityUnavailable,
					fmt.Errorf("failed to receive response: %w", err))
			}
			return
		}

		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				transcript := result.Alternatives[0].Transcript
				g.logger.Info("Final transcript received", zap.String("text", transcript))
				if g.events.OnFinalTranscript != nil {
					g.events.OnFinalTranscript(transcript)
				}
			}
		}
	}
}

// audioEncoding converts a string encoding to the Speech API enum
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
