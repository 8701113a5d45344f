package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/session"
	"github.com/attunehealth/attune/pkg/logging"
)

const (
	defaultHistoryLimit  = 50
	defaultEmotionsLimit = 20
	maxListLimit         = 200
)

// StatsReader reads aggregated per-session statistics.
type StatsReader interface {
	GetStats(ctx context.Context, sessionID string) (*session.Stats, error)
}

// SessionHandler exposes session lifecycle and history endpoints.
type SessionHandler struct {
	store  conversation.Store
	stats  StatsReader
	logger *logging.Logger
}

// NewSessionHandler creates a session handler. stats may be nil when no
// statistics backend is configured.
func NewSessionHandler(store conversation.Store, stats StatsReader, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{store: store, stats: stats, logger: logger}
}

// HandleCreate starts a new session and returns its ID.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := h.store.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("failed to create session", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

type historyTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Crisis    bool      `json:"crisis"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHistory returns a session's transcript, oldest first.
func (h *SessionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit := parseLimit(r, defaultHistoryLimit)

	turns, err := h.store.ListTurns(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{
			Role:      string(t.Role),
			Content:   t.Content,
			Crisis:    t.Crisis,
			Timestamp: t.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": out})
}

// HandleEmotions returns a session's recent emotion snapshots, oldest first.
func (h *SessionHandler) HandleEmotions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit := parseLimit(r, defaultEmotionsLimit)

	snaps, err := h.store.RecentSnapshots(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load emotions", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load emotion history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "snapshots": snaps})
}

// HandleStats returns aggregated statistics for one session.
func (h *SessionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "statistics are not available")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	stats, err := h.stats.GetStats(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to load stats", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
