package capture

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/adapters/kv"
	"github.com/Ravi16329/English-Teacher/domain/entities"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
	"github.com/Ravi16329/English-Teacher/usecase"
)

func newCaptureStore(t *testing.T) *usecase.ConversationStore {
	t.Helper()
	store := usecase.NewConversationStore(kv.NewMemoryStore(), zap.NewNop())
	store.LoadOnStartup()
	if _, err := store.CreateActive(entities.TopicFood, entities.DifficultyBeginner); err != nil {
		t.Fatalf("CreateActive failed: %v", err)
	}
	if err := store.AppendMessage(entities.NewMessage(entities.MessageRoleUser, "I love sushi")); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	return store
}

func TestAssemblerAttachesCapturedAudio(t *testing.T) {
	store := newCaptureStore(t)

	var stopped *entities.AudioRecording
	assembler := NewAssembler(store, repositories.CaptureEvents{
		OnStopped: func(rec entities.AudioRecording) {
			stopped = &rec
		},
	}, zap.NewNop())

	if err := assembler.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	assembler.Feed([]byte{0x01, 0x02})
	assembler.Feed([]byte{0x03})
	assembler.Stop()

	if stopped == nil {
		t.Fatal("Expected the stopped callback to deliver a recording")
	}
	if stopped.SizeBytes != 3 {
		t.Errorf("Expected 3 captured bytes, got %d", stopped.SizeBytes)
	}

	data, ok := store.GetAudio(stopped.StorageKey)
	if !ok || len(data) != 3 {
		t.Error("Expected the assembled audio to be retrievable from the store")
	}

	active := store.Active()
	if active.Messages[0].AudioID == nil || *active.Messages[0].AudioID != stopped.ID {
		t.Error("Expected the recording linked to the user message")
	}
}

func TestAssemblerEmptyCaptureIsNoOp(t *testing.T) {
	store := newCaptureStore(t)

	called := false
	assembler := NewAssembler(store, repositories.CaptureEvents{
		OnStopped: func(entities.AudioRecording) { called = true },
	}, zap.NewNop())

	assembler.Start(context.Background())
	assembler.Stop()

	if called {
		t.Error("An empty capture must not produce a recording")
	}
	if len(store.Active().Recordings) != 0 {
		t.Error("No recording should be stored for an empty capture")
	}
}

func TestAssemblerIgnoresFeedWhenInactive(t *testing.T) {
	store := newCaptureStore(t)
	assembler := NewAssembler(store, repositories.CaptureEvents{}, zap.NewNop())

	// Never started: chunks are dropped and Stop does nothing.
	assembler.Feed([]byte{0x01, 0x02})
	assembler.Stop()

	if len(store.Active().Recordings) != 0 {
		t.Error("Chunks fed outside a capture session must be dropped")
	}
}
