package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/adapters/kv"
	"github.com/Ravi16329/English-Teacher/adapters/stt"
	"github.com/Ravi16329/English-Teacher/adapters/tts"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
	"github.com/Ravi16329/English-Teacher/internal/api"
	"github.com/Ravi16329/English-Teacher/internal/auth"
	"github.com/Ravi16329/English-Teacher/internal/websocket"
	"github.com/Ravi16329/English-Teacher/usecase"
)

func main() {
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	auth.SetSecret(os.Getenv("JWT_SECRET"))

	// Key-value persistence: durable bbolt file, in-memory fallback when it
	// cannot be opened. Either way the server keeps running.
	var store repositories.KeyValue
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "english_teacher.db"
	}
	boltStore, err := kv.NewBoltStore(dataPath, logger)
	if err != nil {
		logger.Warn("Falling back to in-memory persistence", zap.Error(err))
		store = kv.NewMemoryStore()
	} else {
		store = boltStore
		defer boltStore.Close()
	}

	// Initialize usecase services
	conversationStore := usecase.NewConversationStore(store, logger)
	conversationStore.LoadOnStartup()

	assessment := usecase.NewAssessmentService(logger)
	responder := usecase.NewResponseService(logger, nil)
	controller := usecase.NewConversationService(
		assessment, responder, conversationStore, nil, usecase.TurnConfig{}, logger)

	// Speech bindings: by default the browser client provides recognition
	// and synthesis; server-side providers are opted into via env.
	capabilities := websocket.CapabilityConfig{}
	if os.Getenv("STT_PROVIDER") == "google" {
		capabilities.NewTranscriber = func(events repositories.TranscriberEvents) repositories.Transcriber {
			return stt.NewGoogleTranscriber(repositories.AudioConfig{
				SampleRate: 48000,
				Encoding:   "WEBM_OPUS",
				Language:   "en-US",
			}, events, logger)
		}
	}
	if apiKey := os.Getenv("ELEVENLABS_API_KEY"); os.Getenv("TTS_PROVIDER") == "elevenlabs" && apiKey != "" {
		capabilities.NewSpeaker = func(sink func([]byte), events repositories.SpeakerEvents) repositories.Speaker {
			speaker, err := tts.NewElevenLabsSpeaker(
				tts.ElevenLabsConfig{APIKey: apiKey}, tts.AudioSink(sink), events, logger)
			if err != nil {
				logger.Error("Failed to create ElevenLabs speaker", zap.Error(err))
				return nil
			}
			return speaker
		}
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(controller, conversationStore, capabilities, logger)
	go hub.Run()

	// Create Echo instance
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := api.NewServer(controller, conversationStore, hub, logger)
	server.Register(e)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("English Teacher server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Archive an in-flight conversation before the process exits.
	controller.Teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
