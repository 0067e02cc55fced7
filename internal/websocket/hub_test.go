package websocket

import (
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/adapters/kv"
	"github.com/Ravi16329/English-Teacher/usecase"
)

func newHubFixture(t *testing.T) (*Hub, *usecase.ConversationService) {
	t.Helper()
	logger := zap.NewNop()

	store := usecase.NewConversationStore(kv.NewMemoryStore(), logger)
	store.LoadOnStartup()

	controller := usecase.NewConversationService(
		usecase.NewAssessmentService(logger),
		usecase.NewResponseService(logger, nil),
		store, nil, usecase.TurnConfig{}, logger)

	hub := NewHub(controller, store, CapabilityConfig{}, logger)
	return hub, controller
}

func newHubClient(h *Hub, clientID string) *Client {
	return &Client{
		hub:      h,
		send:     make(chan WriteData, 16),
		done:     make(chan struct{}),
		clientID: clientID,
		logger:   zap.NewNop(),
	}
}

func TestStaleClientDepartureKeepsFreshBindings(t *testing.T) {
	hub, controller := newHubFixture(t)

	stale := newHubClient(hub, "stale-tab")
	fresh := newHubClient(hub, "fresh-tab")

	hub.addClient(stale)
	hub.addClient(fresh)
	hub.removeClient(stale)

	// The fresh connection's bindings survive; listening commands still flow.
	if err := controller.BeginListening(); err != nil {
		t.Fatalf("Expected the fresh client's bindings intact, got: %v", err)
	}
	select {
	case frame := <-fresh.send:
		if frame.Type != websocket.TextMessage {
			t.Errorf("Expected a text frame, got type %d", frame.Type)
		}
	default:
		t.Error("Expected a listening command on the fresh client")
	}
}

func TestBoundClientDepartureDetachesCapabilities(t *testing.T) {
	hub, controller := newHubFixture(t)

	client := newHubClient(hub, "only-tab")
	hub.addClient(client)
	hub.removeClient(client)

	if controller.Snapshot().TurnActive {
		t.Error("The turn loop should be paused when the bound client vanishes")
	}
	if err := controller.BeginListening(); err == nil {
		t.Error("Expected no usable bindings after the bound client left")
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	hub, _ := newHubFixture(t)

	client := newHubClient(hub, "only-tab")
	hub.addClient(client)
	hub.removeClient(client)
	// A second unregister for the same connection must not panic on the
	// already-closed channels.
	hub.removeClient(client)
}
