package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultChunkSize    = 1024
	defaultOutputFormat = "pcm_24000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
)

// ElevenLabsConfig holds configuration for the ElevenLabs speaker.
// APIKey is required; everything else has a sensible default.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// ValidateElevenLabsConfig validates the configuration
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type synthesizeRequest struct {
	Text                   string        `json:"text"`
	ModelID                string        `json:"model_id"`
	VoiceSettings          voiceSettings `json:"voice_settings"`
	ApplyTextNormalization string        `json:"apply_text_normalization,omitempty"`
}

// AudioSink receives synthesized audio chunks, typically forwarding them to
// the connected client
type AudioSink func(chunk []byte)

// ElevenLabsSpeaker implements the speech-output capability against the
// ElevenLabs streaming API. Audio chunks flow to the sink; started and
// ended events bracket the stream.
type ElevenLabsSpeaker struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64

	sink   AudioSink
	events repositories.SpeakerEvents
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ repositories.Speaker = (*ElevenLabsSpeaker)(nil)

// NewElevenLabsSpeaker creates a new ElevenLabs backed speaker
func NewElevenLabsSpeaker(config ElevenLabsConfig, sink AudioSink, events repositories.SpeakerEvents, logger *zap.Logger) (*ElevenLabsSpeaker, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultVoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaultModelID
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaultOutputFormat
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = defaultChunkSize
	}
	if config.Stability == 0 {
		config.Stability = defaultStability
	}
	if config.Clarity == 0 {
		config.Clarity = defaultClarity
	}

	return &ElevenLabsSpeaker{
		apiKey:       config.APIKey,
		apiBaseURL:   config.APIBaseURL,
		voiceID:      config.VoiceID,
		modelID:      config.ModelID,
		outputFormat: config.OutputFormat,
		chunkSize:    config.ChunkSize,
		stability:    config.Stability,
		clarity:      config.Clarity,
		sink:         sink,
		events:       events,
		logger:       logger,
	}, nil
}

// Speak synthesizes the text and streams the audio to the sink. Any speech
// already in flight is cancelled first.
func (e *ElevenLabsSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}

	e.CancelIfSpeaking()

	requestBody, err := json.Marshal(synthesizeRequest{
		Text:                   text,
		ModelID:                e.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: voiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, e.voiceID, e.outputFormat)

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	go e.stream(httpReq)
	return nil
}

// CancelIfSpeaking aborts the in-flight synthesis stream, if any
func (e *ElevenLabsSpeaker) CancelIfSpeaking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *ElevenLabsSpeaker) stream(req *http.Request) {
	client := &http.Client{Timeout: 60 * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			// Cancelled; no ended event per the capability contract.
			return
		}
		e.logger.Error("Failed to execute synthesis request", zap.Error(err))
		if e.events.OnError != nil {
			e.events.OnError(domain.ErrorCapabilityUnavailable, err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("eleven labs API returned %d: %s", resp.StatusCode, string(errorBody))
		e.logger.Error("Synthesis failed", zap.Error(err))
		if e.events.OnError != nil {
			e.events.OnError(domain.ErrorCapabilityUnavailable, err)
		}
		return
	}

	if e.events.OnStarted != nil {
		e.events.OnStarted()
	}

	buffer := make([]byte, e.chunkSize)
	totalBytes := 0
	for {
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			totalBytes += n
			if e.sink != nil {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				e.sink(chunk)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if req.Context().Err() != nil {
				return
			}
			e.logger.Error("Failed to read synthesis stream", zap.Error(err))
			if e.events.OnError != nil {
				e.events.OnError(domain.ErrorCapabilityUnavailable, err)
			}
			return
		}
	}

	e.logger.Info("Synthesis stream completed", zap.Int("totalBytes", totalBytes))
	if e.events.OnEnded != nil {
		e.events.OnEnded()
	}
}
