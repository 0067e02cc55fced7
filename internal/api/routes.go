package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/entities"
	"github.com/Ravi16329/English-Teacher/internal/auth"
	"github.com/Ravi16329/English-Teacher/internal/websocket"
	"github.com/Ravi16329/English-Teacher/usecase"
)

// Server exposes the UI-facing HTTP surface
type Server struct {
	controller *usecase.ConversationService
	store      *usecase.ConversationStore
	hub        *websocket.Hub
	logger     *zap.Logger

	mu   sync.Mutex
	mode Mode
}

// NewServer creates the API server
func NewServer(
	controller *usecase.ConversationService,
	store *usecase.ConversationStore,
	hub *websocket.Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		controller: controller,
		store:      store,
		hub:        hub,
		logger:     logger,
		mode:       ModeConversation,
	}
}

// Register initializes all API routes
func (s *Server) Register(e *echo.Echo) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "english-teacher-server",
		})
	})

	e.POST("/api/v1/session", s.createSession)

	v1 := e.Group("/api/v1", s.requireToken)

	v1.GET("/topics", s.getTopics)
	v1.GET("/mode", s.getMode)
	v1.PUT("/mode", s.setMode)

	v1.GET("/conversations", s.listConversations)
	v1.GET("/conversations/:id", s.getConversation)
	v1.DELETE("/conversations", s.clearConversations)
	v1.POST("/conversations/:topic/start", s.startConversation)
	v1.POST("/conversations/pause", s.pauseConversation)
	v1.POST("/conversations/end", s.endConversation)

	v1.GET("/state", s.getState)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", s.handleWebSocket)
}

// createSession issues a client token for the local UI
func (s *Server) createSession(c echo.Context) error {
	clientID := uuid.NewString()
	token, err := auth.GenerateClientToken(clientID)
	if err != nil {
		s.logger.Error("Failed to generate client token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	return c.JSON(http.StatusOK, SessionResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  clientID,
	})
}

// requireToken validates the Bearer token on API routes
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := s.claimsFromRequest(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "A valid session token is required",
			})
		}
		c.Set("client_id", claims.ClientID)
		return next(c)
	}
}

func (s *Server) claimsFromRequest(c echo.Context) (*auth.JWTClaims, error) {
	authHeader := c.Request().Header.Get("Authorization")
	token := ""
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		token = c.QueryParam("token")
	}
	return auth.ValidateToken(token)
}

func (s *Server) getTopics(c echo.Context) error {
	return c.JSON(http.StatusOK, TopicsResponse{Topics: entities.Topics()})
}

func (s *Server) getMode(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, ModeResponse{Mode: s.mode})
}

func (s *Server) setMode(c echo.Context) error {
	var req ModeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Mode != ModeConversation && req.Mode != ModeHistory {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_mode",
			Message: "Mode must be conversation or history",
		})
	}

	s.mu.Lock()
	s.mode = req.Mode
	s.mu.Unlock()

	// Switching away from the conversation view suspends the turn loop.
	if req.Mode == ModeHistory {
		s.controller.Pause()
	}
	return c.JSON(http.StatusOK, ModeResponse{Mode: req.Mode})
}

// listConversations returns the history, optionally filtered by topic and a
// case-insensitive substring query over message previews
func (s *Server) listConversations(c echo.Context) error {
	topic := entities.Topic(c.QueryParam("topic"))
	query := c.QueryParam("q")

	conversations := s.store.Search(topic, query)
	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		summaries = append(summaries, summarize(conversation))
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) getConversation(c echo.Context) error {
	conversation, ok := s.store.Find(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Conversation not found",
		})
	}
	return c.JSON(http.StatusOK, ConversationDetail{
		Conversation: conversation,
		Stats:        statsFor(conversation),
	})
}

// clearConversations irreversibly clears all history; the client must send
// confirm=true after obtaining explicit user confirmation
func (s *Server) clearConversations(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "confirmation_required",
			Message: "Pass confirm=true to clear all conversation data",
		})
	}

	s.controller.EndConversation()
	if err := s.store.ClearAll(); err != nil {
		s.logger.Warn("Clear completed with persistence errors", zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) startConversation(c echo.Context) error {
	topic, ok := entities.ParseTopic(c.Param("topic"))
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_topic",
			Message: "Topic must be one of the supported set",
		})
	}

	// Difficulty is optional; an empty body keeps the default.
	var req StartConversationRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Debug("Ignoring malformed start payload", zap.Error(err))
	}

	if err := s.controller.StartConversation(topic, entities.Difficulty(req.Difficulty)); err != nil {
		s.logger.Warn("Failed to start conversation", zap.Error(err))
	}
	return c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) pauseConversation(c echo.Context) error {
	s.controller.Pause()
	return c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) endConversation(c echo.Context) error {
	s.controller.EndConversation()
	return c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) getState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.controller.Snapshot())
}

// handleWebSocket validates the token and hands the connection to the hub
func (s *Server) handleWebSocket(c echo.Context) error {
	claims, err := s.claimsFromRequest(c)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "A valid session token is required",
		})
	}

	if claims.Role != auth.RoleClient {
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only client tokens may open the event stream",
		})
	}

	s.logger.Info("WebSocket connection authenticated", zap.String("client_id", claims.ClientID))
	return websocket.HandleWebSocket(s.hub, c, claims.ClientID, s.logger)
}
