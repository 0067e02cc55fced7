package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/adapters/capture"
	"github.com/Ravi16329/English-Teacher/domain"
	"github.com/Ravi16329/English-Teacher/domain/entities"
	"github.com/Ravi16329/English-Teacher/domain/repositories"
	"github.com/Ravi16329/English-Teacher/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local single-user deployment; the JWT check gates the upgrade.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// CapabilityConfig selects the concrete speech bindings for a connection.
// Nil factories mean the browser client provides the capability itself
// (SpeechRecognition / speechSynthesis) and drives it through messages.
type CapabilityConfig struct {
	// NewTranscriber builds a server-side transcriber fed with the binary
	// audio chunks the client streams up
	NewTranscriber func(events repositories.TranscriberEvents) repositories.Transcriber
	// NewSpeaker builds a server-side synthesizer; audio flows back to the
	// client through the sink as binary frames
	NewSpeaker func(sink func(chunk []byte), events repositories.SpeakerEvents) repositories.Speaker
}

// Hub maintains the set of connected clients and wires each one into the
// turn-taking controller as its speech capabilities
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	controller   *usecase.ConversationService
	store        *usecase.ConversationStore
	capabilities CapabilityConfig
	validator    *MessageValidator
	logger       *zap.Logger

	// bound is the client whose speech bindings the controller currently
	// holds; register and unregister are serialized by Run
	bound *Client
}

// NewHub creates a new WebSocket hub
func NewHub(
	controller *usecase.ConversationService,
	store *usecase.ConversationStore,
	capabilities CapabilityConfig,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		controller:   controller,
		store:        store,
		capabilities: capabilities,
		validator:    NewMessageValidator(),
		logger:       logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.clientID] = client
	h.mu.Unlock()

	// The newest connection provides the controller's speech bindings.
	client.bindCapabilities()
	h.bound = client
	h.logger.Info("Client registered", zap.String("clientID", client.clientID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.clientID]; ok {
		delete(h.clients, client.clientID)
		close(client.send)
		close(client.done)
	}
	h.mu.Unlock()

	// Only strip the bindings when the departing connection owns them; a
	// stale tab closing must not detach a fresh client's capabilities.
	if h.bound == client {
		h.bound = nil
		h.controller.Pause()
		h.controller.BindCapabilities(nil, nil)
	}
	h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
}

// WriteData is one outbound websocket frame
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the controller
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	done chan struct{}

	clientID string

	logger *zap.Logger

	// Speech bindings for this connection
	transcriber repositories.Transcriber
	speaker     repositories.Speaker
	capture     repositories.AudioCapture
}

// HandleWebSocket upgrades an authenticated request and registers the client
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		done:     make(chan struct{}),
		clientID: clientID,
		logger:   logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
	go client.pushSnapshots()

	return nil
}

// bindCapabilities builds the speech bindings for this connection and
// attaches them to the controller
func (c *Client) bindCapabilities() {
	if c.hub.capabilities.NewTranscriber != nil {
		c.transcriber = c.hub.capabilities.NewTranscriber(c.hub.controller.TranscriberEvents())
	} else {
		c.transcriber = &wsTranscriber{client: c}
	}

	if c.hub.capabilities.NewSpeaker != nil {
		c.speaker = c.hub.capabilities.NewSpeaker(c.sendBinary, c.hub.controller.SpeakerEvents())
	} else {
		c.speaker = &wsSpeaker{client: c}
	}

	c.capture = c.hub.newCapture()
	c.hub.controller.BindCapabilities(c.transcriber, c.speaker)
}

func (h *Hub) newCapture() repositories.AudioCapture {
	return capture.NewAssembler(h.store, repositories.CaptureEvents{}, h.logger)
}

// pushSnapshots forwards controller state changes to the client until the
// connection goes away
func (c *Client) pushSnapshots() {
	snapshots := c.hub.controller.Subscribe()
	defer c.hub.controller.Unsubscribe(snapshots)
	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			c.sendJSON(CreateStateChangedMessage(snapshot))
			if snapshot.Notice != nil {
				c.sendJSON(CreateNoticeMessage(*snapshot.Notice))
			}
		case <-c.done:
			return
		}
	}
}

// readPump pumps messages from the websocket connection to the controller
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the controller to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage routes one validated control message to the controller
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", err.Error()))
		return
	}

	controller := c.hub.controller

	switch msg := parsed.(type) {
	case *StartConversationMessage:
		topic, ok := entities.ParseTopic(msg.Topic)
		if !ok {
			c.sendJSON(CreateErrorMessage("unknown_topic", "topic must be one of the supported set"))
			return
		}
		if err := controller.StartConversation(topic, entities.Difficulty(msg.Difficulty)); err != nil {
			c.logger.Warn("Failed to start conversation", zap.Error(err))
		}

	case *TranscriptMessage:
		controller.HandleTranscript(msg.Text)

	case *CapabilityErrorMessage:
		controller.HandleCapabilityError(domain.ErrorKind(msg.Kind), nil)

	case *BaseMessage:
		switch msg.Type {
		case MessageTypeStartListening:
			if c.capture != nil {
				if err := c.capture.Start(context.Background()); err != nil {
					c.logger.Warn("Failed to start audio capture", zap.Error(err))
				}
			}
			if err := controller.BeginListening(); err != nil {
				c.logger.Warn("Failed to begin listening", zap.Error(err))
			}
		case MessageTypeStopListening:
			if c.transcriber != nil {
				c.transcriber.Stop()
			}
			if c.capture != nil {
				c.capture.Stop()
			}
		case MessageTypeSpeechStarted:
			controller.HandleSpeechStarted()
		case MessageTypeSpeechEnded:
			controller.HandleSpeechEnded()
		case MessageTypePause:
			controller.Pause()
		case MessageTypeEndConversation:
			controller.EndConversation()
		}
	}
}

// processAudioChunk feeds captured audio into the capture assembler and,
// when a server-side transcriber is bound, into recognition
func (c *Client) processAudioChunk(data []byte) {
	if c.capture != nil {
		c.capture.Feed(data)
	}
	if c.transcriber != nil {
		if err := c.transcriber.Feed(data); err != nil {
			c.logger.Error("Failed to stream audio data", zap.Error(err))
		}
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Client send buffer full, dropping message")
	}
}

func (c *Client) sendBinary(chunk []byte) {
	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: chunk}:
	default:
		c.logger.Warn("Client send buffer full, dropping audio chunk")
	}
}

// wsTranscriber delegates recognition to the browser's SpeechRecognition;
// start/stop are relayed as commands and finalized utterances come back as
// transcript_final messages
type wsTranscriber struct {
	client *Client
}

var _ repositories.Transcriber = (*wsTranscriber)(nil)

func (t *wsTranscriber) Start(ctx context.Context) error {
	t.client.sendJSON(&BaseMessage{Type: MessageTypeListeningStart, Timestamp: time.Now().Format(time.RFC3339)})
	return nil
}

func (t *wsTranscriber) Feed(data []byte) error {
	// The browser transcribes at the source.
	return nil
}

func (t *wsTranscriber) Stop() {
	t.client.sendJSON(&BaseMessage{Type: MessageTypeListeningStop, Timestamp: time.Now().Format(time.RFC3339)})
}

// wsSpeaker delegates speech output to the browser's speechSynthesis;
// speech_started/speech_ended messages drive the controller events
type wsSpeaker struct {
	client *Client
}

var _ repositories.Speaker = (*wsSpeaker)(nil)

func (s *wsSpeaker) Speak(ctx context.Context, text string) error {
	s.client.sendJSON(CreateSpeakMessage(text))
	return nil
}

func (s *wsSpeaker) CancelIfSpeaking() {
	s.client.sendJSON(&BaseMessage{Type: MessageTypeCancelSpeech, Timestamp: time.Now().Format(time.RFC3339)})
}
