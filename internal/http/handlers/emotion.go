package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/internal/vision"
	"github.com/attunehealth/attune/pkg/logging"
)

// EmotionHandler ingests facial emotion observations. Callers either submit
// per-face probability vectors directly or send a base64 image for the model
// service to analyze.
type EmotionHandler struct {
	service  *conversation.Service
	detector vision.Detector
	logger   *logging.Logger
}

// NewEmotionHandler creates an emotion handler. detector may be nil, in which
// case image submissions are rejected.
func NewEmotionHandler(service *conversation.Service, detector vision.Detector, logger *logging.Logger) *EmotionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmotionHandler{service: service, detector: detector, logger: logger}
}

type detectEmotionRequest struct {
	SessionID string               `json:"session_id"`
	Faces     []map[string]float64 `json:"faces"`
	Image     string               `json:"image"`
}

type detectEmotionResponse struct {
	Snapshot emotion.Snapshot `json:"snapshot"`
}

// HandleDetect aggregates a frame worth of face vectors into one snapshot.
// An empty faces list is a valid no-face observation, not an error.
func (h *EmotionHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectEmotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Faces) > 0 && req.Image != "" {
		writeError(w, http.StatusBadRequest, "provide either faces or image, not both")
		return
	}

	var faces []emotion.FaceScores
	switch {
	case req.Image != "":
		if h.detector == nil {
			writeError(w, http.StatusUnprocessableEntity, "image analysis is not configured")
			return
		}
		img, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image must be base64-encoded")
			return
		}
		faces, err = h.detector.DetectFaces(r.Context(), img)
		if err != nil {
			h.logger.Error("face detection failed", "session_id", req.SessionID, "error", err.Error())
			writeError(w, http.StatusBadGateway, "face detection failed")
			return
		}
	default:
		parsed, err := parseFaces(req.Faces)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		faces = parsed
	}

	snap, err := h.service.RecordEmotion(r.Context(), req.SessionID, faces)
	if err != nil {
		if errors.Is(err, emotion.ErrMalformedInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to record emotion", "session_id", req.SessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to record emotion")
		return
	}

	writeJSON(w, http.StatusOK, detectEmotionResponse{Snapshot: snap})
}

func parseFaces(raw []map[string]float64) ([]emotion.FaceScores, error) {
	faces := make([]emotion.FaceScores, 0, len(raw))
	for _, scores := range raw {
		face := make(emotion.FaceScores, len(scores))
		for name, p := range scores {
			label, err := emotion.ParseLabel(name)
			if err != nil {
				return nil, err
			}
			face[label] = p
		}
		faces = append(faces, face)
	}
	return faces, nil
}
