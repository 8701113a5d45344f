package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/pkg/logging"
)

// ChatHandler serves the message endpoint of the response engine.
type ChatHandler struct {
	service *conversation.Service
	logger  *logging.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service *conversation.Service, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{service: service, logger: logger}
}

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatMessageResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Category  string `json:"category"`
	Crisis    bool   `json:"crisis"`
	Generated bool   `json:"generated"`
}

// HandleMessage runs one chat turn. An empty session_id starts a new session
// and the response carries the assigned ID.
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.service.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		// A crisis reply is returned even when persistence failed; it must
		// still reach the user.
		if !result.Reply.Crisis {
			h.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to process message")
			return
		}
		h.logger.Error("chat turn degraded", "session_id", result.SessionID, "error", err.Error())
	}

	writeJSON(w, http.StatusOK, chatMessageResponse{
		SessionID: result.SessionID,
		Reply:     result.Reply.Text,
		Category:  string(result.Reply.Category),
		Crisis:    result.Reply.Crisis,
		Generated: result.Reply.Generated,
	})
}
