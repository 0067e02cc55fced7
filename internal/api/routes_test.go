package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/adapters/kv"
	"github.com/Ravi16329/English-Teacher/domain/entities"
	"github.com/Ravi16329/English-Teacher/internal/auth"
	"github.com/Ravi16329/English-Teacher/usecase"
)

type apiFixture struct {
	echo  *echo.Echo
	store *usecase.ConversationStore
	token string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()

	store := usecase.NewConversationStore(kv.NewMemoryStore(), logger)
	store.LoadOnStartup()

	controller := usecase.NewConversationService(
		usecase.NewAssessmentService(logger),
		usecase.NewResponseService(logger, nil),
		store, nil, usecase.TurnConfig{}, logger)

	server := NewServer(controller, store, nil, logger)
	e := echo.New()
	server.Register(e)

	token, err := auth.GenerateClientToken("test-client")
	if err != nil {
		t.Fatalf("GenerateClientToken failed: %v", err)
	}

	return &apiFixture{echo: e, store: store, token: token}
}

func (f *apiFixture) request(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) archive(t *testing.T, topic entities.Topic, userText string) *entities.Conversation {
	t.Helper()
	c, err := f.store.CreateActive(topic, entities.DifficultyBeginner)
	if err != nil {
		t.Fatalf("CreateActive failed: %v", err)
	}
	if err := f.store.AppendMessage(entities.NewMessage(entities.MessageRoleUser, userText)); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := f.store.CloseAndArchive(c); err != nil {
		t.Fatalf("CloseAndArchive failed: %v", err)
	}
	return c
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestSessionIssuesToken(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Token == "" || resp.ClientID == "" {
		t.Error("Expected a token and client identifier")
	}

	claims, err := auth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("Issued token should validate: %v", err)
	}
	if claims.Role != auth.RoleClient {
		t.Errorf("Expected role %s, got %s", auth.RoleClient, claims.Role)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/topics", nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rec.Code)
	}

	if rec := f.request(http.MethodGet, "/api/v1/topics", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with a token, got %d", rec.Code)
	}
}

func TestGetTopics(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/api/v1/topics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp TopicsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Topics) != 6 {
		t.Errorf("Expected 6 topics, got %d", len(resp.Topics))
	}
}

func TestModeSwitching(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/api/v1/mode", "")
	var resp ModeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Mode != ModeConversation {
		t.Errorf("Expected the conversation mode by default, got %s", resp.Mode)
	}

	rec = f.request(http.MethodPut, "/api/v1/mode", `{"mode":"history"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Mode != ModeHistory {
		t.Errorf("Expected the history mode, got %s", resp.Mode)
	}

	if rec := f.request(http.MethodPut, "/api/v1/mode", `{"mode":"maintenance"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown mode, got %d", rec.Code)
	}
}

func TestListConversationsWithFilters(t *testing.T) {
	f := newAPIFixture(t)
	f.archive(t, entities.TopicFood, "I love ramen")
	f.archive(t, entities.TopicTravel, "I visited Osaka")

	rec := f.request(http.MethodGet, "/api/v1/conversations", "")
	var all []ConversationSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(all))
	}
	// Most recent first.
	if all[0].Topic != entities.TopicTravel {
		t.Errorf("Expected travel first, got %s", all[0].Topic)
	}
	if all[0].Preview != "I visited Osaka" {
		t.Errorf("Unexpected preview %q", all[0].Preview)
	}

	rec = f.request(http.MethodGet, "/api/v1/conversations?topic=food", "")
	var filtered []ConversationSummary
	json.Unmarshal(rec.Body.Bytes(), &filtered)
	if len(filtered) != 1 || filtered[0].Topic != entities.TopicFood {
		t.Errorf("Topic filter returned %d results", len(filtered))
	}

	rec = f.request(http.MethodGet, "/api/v1/conversations?q=osaka", "")
	var queried []ConversationSummary
	json.Unmarshal(rec.Body.Bytes(), &queried)
	if len(queried) != 1 || queried[0].Topic != entities.TopicTravel {
		t.Errorf("Query filter returned %d results", len(queried))
	}
}

func TestGetConversationDetail(t *testing.T) {
	f := newAPIFixture(t)
	archived := f.archive(t, entities.TopicFood, "I love ramen")

	rec := f.request(http.MethodGet, "/api/v1/conversations/"+archived.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var detail ConversationDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if detail.Conversation.ID != archived.ID {
		t.Errorf("Expected conversation %s, got %s", archived.ID, detail.Conversation.ID)
	}

	if rec := f.request(http.MethodGet, "/api/v1/conversations/conv_missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown conversation, got %d", rec.Code)
	}
}

func TestClearConversationsRequiresConfirmation(t *testing.T) {
	f := newAPIFixture(t)
	f.archive(t, entities.TopicFood, "I love ramen")

	rec := f.request(http.MethodDelete, "/api/v1/conversations", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without confirmation, got %d", rec.Code)
	}
	if len(f.store.History()) != 1 {
		t.Error("History must be untouched without confirmation")
	}

	rec = f.request(http.MethodDelete, "/api/v1/conversations?confirm=true", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if len(f.store.History()) != 0 {
		t.Error("Expected the history to be cleared")
	}
}

func TestStartConversationEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodPost, "/api/v1/conversations/food/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var snapshot usecase.StateSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snapshot.Topic != entities.TopicFood {
		t.Errorf("Expected a food conversation, got %s", snapshot.Topic)
	}
	if f.store.Active() == nil {
		t.Error("Expected an active conversation")
	}

	if rec := f.request(http.MethodPost, "/api/v1/conversations/politics/start", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown topic, got %d", rec.Code)
	}
}

func TestPauseAndEndEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	f.request(http.MethodPost, "/api/v1/conversations/food/start", "")

	rec := f.request(http.MethodPost, "/api/v1/conversations/pause", "")
	var snapshot usecase.StateSnapshot
	json.Unmarshal(rec.Body.Bytes(), &snapshot)
	if snapshot.TurnActive {
		t.Error("Expected the turn loop inactive after pause")
	}

	rec = f.request(http.MethodPost, "/api/v1/conversations/end", "")
	snapshot = usecase.StateSnapshot{}
	json.Unmarshal(rec.Body.Bytes(), &snapshot)
	if snapshot.ConversationID != "" {
		t.Error("Expected no conversation after end")
	}
	if len(f.store.History()) != 1 {
		t.Errorf("Expected the conversation archived, got %d", len(f.store.History()))
	}
}

func TestGetState(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var snapshot usecase.StateSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snapshot.State != usecase.StateIdle {
		t.Errorf("Expected idle at startup, got %s", snapshot.State)
	}
}
