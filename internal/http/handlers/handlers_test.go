package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/internal/sentiment"
	"github.com/attunehealth/attune/pkg/logging"
)

type memStore struct {
	turns     map[string][]conversation.Turn
	snapshots map[string][]emotion.Snapshot
	nextID    int
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		turns:     make(map[string][]conversation.Turn),
		snapshots: make(map[string][]emotion.Snapshot),
	}
}

func (s *memStore) CreateSession(ctx context.Context) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.nextID++
	return fmt.Sprintf("sess-%d", s.nextID), nil
}

func (s *memStore) AppendTurn(ctx context.Context, turn conversation.Turn) error {
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *memStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	turns := s.turns[sessionID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *memStore) AppendSnapshot(ctx context.Context, sessionID string, snap emotion.Snapshot) error {
	s.snapshots[sessionID] = append(s.snapshots[sessionID], snap)
	return nil
}

func (s *memStore) RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]emotion.Snapshot, error) {
	snaps := s.snapshots[sessionID]
	if len(snaps) > limit {
		snaps = snaps[len(snaps)-limit:]
	}
	return snaps, nil
}

func newTestService(t *testing.T, store conversation.Store) *conversation.Service {
	t.Helper()
	logger := logging.New("error")
	classifier := sentiment.NewClassifier(sentiment.DefaultLexicon(), logger)
	responder := conversation.NewResponder(nil, conversation.DefaultTemplates(), time.Second, 0.6, 10, nil, logger)
	return conversation.NewService(classifier, conversation.NewFuser(0.6, 5), responder, store, nil, logger)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestChatHandlerReturnsReply(t *testing.T) {
	store := newMemStore()
	h := NewChatHandler(newTestService(t, store), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{"message":"I feel really stressed about work"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.NotEmpty(t, resp.Reply)
	assert.Equal(t, "stress", resp.Category)
	assert.False(t, resp.Crisis)
}

func TestChatHandlerCrisis(t *testing.T) {
	store := newMemStore()
	h := NewChatHandler(newTestService(t, store), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{"message":"I want to kill myself"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Crisis)
	assert.Contains(t, resp.Reply, "988")
}

// assistantFailStore fails only assistant-turn appends, the write that
// happens after the reply is already selected.
type assistantFailStore struct {
	*memStore
}

func (s *assistantFailStore) AppendTurn(ctx context.Context, turn conversation.Turn) error {
	if turn.Role == conversation.ChatRoleAssistant {
		return errors.New("connection refused")
	}
	return s.memStore.AppendTurn(ctx, turn)
}

// A storage failure after the crisis reply is chosen must not keep the
// hotline text from the user.
func TestChatHandlerCrisisSurvivesStorageFailure(t *testing.T) {
	store := &assistantFailStore{memStore: newMemStore()}
	h := NewChatHandler(newTestService(t, store), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{"session_id":"sess-9","message":"I want to kill myself"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Crisis)
	assert.Contains(t, resp.Reply, "988")
	assert.Equal(t, "sess-9", resp.SessionID)
}

func TestChatHandlerStorageFailureNonCrisis(t *testing.T) {
	store := &assistantFailStore{memStore: newMemStore()}
	h := NewChatHandler(newTestService(t, store), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{"session_id":"sess-9","message":"I've been stressed about work"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChatHandlerRejectsEmptyMessage(t *testing.T) {
	h := NewChatHandler(newTestService(t, newMemStore()), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerRejectsBadJSON(t *testing.T) {
	h := NewChatHandler(newTestService(t, newMemStore()), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerReusesSession(t *testing.T) {
	store := newMemStore()
	h := NewChatHandler(newTestService(t, store), logging.New("error"))

	rec := postJSON(t, h.HandleMessage, `{"session_id":"sess-7","message":"hello there"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-7", resp.SessionID)
	assert.Len(t, store.turns["sess-7"], 2)
}

func TestEmotionHandlerAggregatesFaces(t *testing.T) {
	store := newMemStore()
	h := NewEmotionHandler(newTestService(t, store), nil, logging.New("error"))

	rec := postJSON(t, h.HandleDetect, `{"session_id":"sess-1","faces":[{"happy":0.8,"neutral":0.2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectEmotionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, emotion.Happy, resp.Snapshot.Dominant)
	assert.Equal(t, 1, resp.Snapshot.FacesDetected)
	assert.Len(t, store.snapshots["sess-1"], 1)
}

func TestEmotionHandlerNoFaces(t *testing.T) {
	h := NewEmotionHandler(newTestService(t, newMemStore()), nil, logging.New("error"))

	rec := postJSON(t, h.HandleDetect, `{"session_id":"sess-1","faces":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectEmotionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, emotion.Neutral, resp.Snapshot.Dominant)
	assert.Equal(t, 0.0, resp.Snapshot.Confidence)
	assert.Equal(t, 0, resp.Snapshot.FacesDetected)
}

func TestEmotionHandlerRejectsMalformedVector(t *testing.T) {
	h := NewEmotionHandler(newTestService(t, newMemStore()), nil, logging.New("error"))

	rec := postJSON(t, h.HandleDetect, `{"faces":[{"happy":0.3,"neutral":0.2}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmotionHandlerRejectsUnknownLabel(t *testing.T) {
	h := NewEmotionHandler(newTestService(t, newMemStore()), nil, logging.New("error"))

	rec := postJSON(t, h.HandleDetect, `{"faces":[{"bored":1.0}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmotionHandlerImageWithoutDetector(t *testing.T) {
	h := NewEmotionHandler(newTestService(t, newMemStore()), nil, logging.New("error"))

	rec := postJSON(t, h.HandleDetect, `{"image":"aGVsbG8="}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

type stubDetector struct {
	faces []emotion.FaceScores
	err   error
}

func (d stubDetector) DetectFaces(ctx context.Context, image []byte) ([]emotion.FaceScores, error) {
	return d.faces, d.err
}

func TestEmotionHandlerImage(t *testing.T) {
	det := stubDetector{faces: []emotion.FaceScores{{emotion.Sad: 0.7, emotion.Neutral: 0.3}}}
	h := NewEmotionHandler(newTestService(t, newMemStore()), det, logging.New("error"))

	img := base64.StdEncoding.EncodeToString([]byte("fake-image"))
	rec := postJSON(t, h.HandleDetect, fmt.Sprintf(`{"session_id":"sess-1","image":%q}`, img))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectEmotionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, emotion.Sad, resp.Snapshot.Dominant)
}

func TestEmotionHandlerDetectorFailure(t *testing.T) {
	det := stubDetector{err: errors.New("model offline")}
	h := NewEmotionHandler(newTestService(t, newMemStore()), det, logging.New("error"))

	img := base64.StdEncoding.EncodeToString([]byte("fake-image"))
	rec := postJSON(t, h.HandleDetect, fmt.Sprintf(`{"image":%q}`, img))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEmotionHandlerRejectsFacesAndImage(t *testing.T) {
	h := NewEmotionHandler(newTestService(t, newMemStore()), nil, logging.New("error"))

	rec := postJSON(t, h.HandleDetect, `{"faces":[{"happy":1.0}],"image":"aGVsbG8="}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func sessionRouter(h *SessionHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/session", h.HandleCreate)
	r.Get("/api/session/{sessionID}/history", h.HandleHistory)
	r.Get("/api/session/{sessionID}/emotions", h.HandleEmotions)
	r.Get("/api/session/{sessionID}/stats", h.HandleStats)
	return r
}

func TestSessionCreate(t *testing.T) {
	store := newMemStore()
	r := sessionRouter(NewSessionHandler(store, nil, logging.New("error")))

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp["session_id"])
}

func TestSessionHistory(t *testing.T) {
	store := newMemStore()
	store.turns["sess-1"] = []conversation.Turn{
		{SessionID: "sess-1", Role: conversation.ChatRoleUser, Content: "hi", Timestamp: time.Now().UTC()},
		{SessionID: "sess-1", Role: conversation.ChatRoleAssistant, Content: "Hello!", Timestamp: time.Now().UTC()},
	}
	r := sessionRouter(NewSessionHandler(store, nil, logging.New("error")))

	req := httptest.NewRequest(http.MethodGet, "/api/session/sess-1/history", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []historyTurn `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "Hello!", resp.Messages[1].Content)
}

func TestSessionEmotions(t *testing.T) {
	store := newMemStore()
	store.snapshots["sess-1"] = []emotion.Snapshot{
		{Dominant: emotion.Sad, Confidence: 0.7, FacesDetected: 1},
	}
	r := sessionRouter(NewSessionHandler(store, nil, logging.New("error")))

	req := httptest.NewRequest(http.MethodGet, "/api/session/sess-1/emotions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Snapshots []emotion.Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Snapshots, 1)
	assert.Equal(t, emotion.Sad, resp.Snapshots[0].Dominant)
}

func TestSessionStatsUnavailable(t *testing.T) {
	r := sessionRouter(NewSessionHandler(newMemStore(), nil, logging.New("error")))

	req := httptest.NewRequest(http.MethodGet, "/api/session/sess-1/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	assert.Equal(t, 10, parseLimit(req, 50))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, 50, parseLimit(req, 50))

	req = httptest.NewRequest(http.MethodGet, "/?limit=-3", nil)
	assert.Equal(t, 50, parseLimit(req, 50))

	req = httptest.NewRequest(http.MethodGet, "/?limit=9999", nil)
	assert.Equal(t, maxListLimit, parseLimit(req, 50))
}
