package webchat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/pkg/logging"
)

const historyReplayLimit = 50

// Handler serves the real-time chat channel. Each connection is bound to one
// session; turns run synchronously, so the reply goes back on the same
// connection that carried the message.
type Handler struct {
	service *conversation.Service
	store   conversation.Store
	logger  *logging.Logger
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	Category  string           `json:"category,omitempty"`
	Crisis    bool             `json:"crisis,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified turn for history replay.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler.
func NewHandler(service *conversation.Service, store conversation.Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, store: store, logger: logger}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		id, err := h.store.CreateSession(r.Context())
		if err != nil {
			h.logger.Error("webchat: failed to create session", "error", err.Error())
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "failed to start session"})
			return
		}
		sessionID = id
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	h.replayHistory(r.Context(), conn, sessionID)

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err.Error())
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})

		result, err := h.service.HandleMessage(r.Context(), sessionID, msg.Text)
		if err != nil && !result.Reply.Crisis {
			h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err.Error())
			_ = websocket.JSON.Send(conn, OutboundMessage{
				Type: "error",
				Text: "Sorry, something went wrong. Please try again.",
			})
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:      "message",
			Role:      string(conversation.ChatRoleAssistant),
			Text:      result.Reply.Text,
			Category:  string(result.Reply.Category),
			Crisis:    result.Reply.Crisis,
			SessionID: result.SessionID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *Handler) replayHistory(ctx context.Context, conn *websocket.Conn, sessionID string) {
	turns, err := h.store.ListTurns(ctx, sessionID, historyReplayLimit)
	if err != nil {
		h.logger.Warn("webchat: failed to load history", "session_id", sessionID, "error", err.Error())
		return
	}
	if len(turns) == 0 {
		return
	}
	history := make([]HistoryMessage, 0, len(turns))
	for _, t := range turns {
		history = append(history, HistoryMessage{
			Role:      string(t.Role),
			Text:      t.Content,
			Timestamp: t.Timestamp.Format(time.RFC3339),
		})
	}
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
}
