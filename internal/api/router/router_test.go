package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/internal/http/handlers"
	"github.com/attunehealth/attune/internal/sentiment"
	"github.com/attunehealth/attune/pkg/logging"
)

type routerStore struct {
	turns     map[string][]conversation.Turn
	snapshots map[string][]emotion.Snapshot
	nextID    int
}

func newRouterStore() *routerStore {
	return &routerStore{
		turns:     make(map[string][]conversation.Turn),
		snapshots: make(map[string][]emotion.Snapshot),
	}
}

func (s *routerStore) CreateSession(ctx context.Context) (string, error) {
	s.nextID++
	return fmt.Sprintf("sess-%d", s.nextID), nil
}

func (s *routerStore) AppendTurn(ctx context.Context, turn conversation.Turn) error {
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *routerStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	return s.turns[sessionID], nil
}

func (s *routerStore) AppendSnapshot(ctx context.Context, sessionID string, snap emotion.Snapshot) error {
	s.snapshots[sessionID] = append(s.snapshots[sessionID], snap)
	return nil
}

func (s *routerStore) RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]emotion.Snapshot, error) {
	return s.snapshots[sessionID], nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.New("error")
	store := newRouterStore()
	classifier := sentiment.NewClassifier(sentiment.DefaultLexicon(), logger)
	responder := conversation.NewResponder(nil, conversation.DefaultTemplates(), time.Second, 0.6, 10, nil, logger)
	service := conversation.NewService(classifier, conversation.NewFuser(0.6, 5), responder, store, nil, logger)

	return New(&Config{
		Logger:             logger,
		ChatHandler:        handlers.NewChatHandler(service, logger),
		EmotionHandler:     handlers.NewEmotionHandler(service, nil, logger),
		SessionHandler:     handlers.NewSessionHandler(store, nil, logger),
		CORSAllowedOrigins: []string{"*"},
	})
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouterChatRoute(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_id")
}

func TestRouterSessionRoutes(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/session/sess-1/history", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
