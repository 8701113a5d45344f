package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/internal/observability/metrics"
	"github.com/attunehealth/attune/internal/sentiment"
	"github.com/attunehealth/attune/pkg/logging"
)

// How many prior turns are loaded from the store per message. The prompt
// window bound is applied separately by the responder.
const turnHistoryLimit = 50

// MessageResult is what a full chat turn produces.
type MessageResult struct {
	SessionID string
	Reply     Reply
}

// Service runs one full chat turn: load context from the store, classify,
// fuse, select a reply, and persist both turns. It is stateless across calls;
// concurrent sessions never interfere, and the surrounding server serializes
// turns within one session.
type Service struct {
	classifier *sentiment.Classifier
	fuser      *Fuser
	responder  *Responder
	store      Store
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
}

// NewService wires the engine components together.
func NewService(classifier *sentiment.Classifier, fuser *Fuser, responder *Responder, store Store, m *metrics.ConversationMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		classifier: classifier,
		fuser:      fuser,
		responder:  responder,
		store:      store,
		metrics:    m,
		logger:     logger,
	}
}

// HandleMessage processes one user message. An empty sessionID starts a new
// session. A crisis reply is always returned even when persisting it fails;
// in that case the storage error is returned alongside so the failure is
// never swallowed.
func (s *Service) HandleMessage(ctx context.Context, sessionID, message string) (MessageResult, error) {
	start := time.Now()

	message = strings.TrimSpace(message)
	if message == "" {
		return MessageResult{}, fmt.Errorf("conversation: message cannot be empty")
	}

	if sessionID == "" {
		id, err := s.store.CreateSession(ctx)
		if err != nil {
			return MessageResult{}, fmt.Errorf("conversation: failed to create session: %w", err)
		}
		sessionID = id
	}

	turns, err := s.store.ListTurns(ctx, sessionID, turnHistoryLimit)
	if err != nil {
		return MessageResult{}, fmt.Errorf("conversation: failed to load history: %w", err)
	}
	snapshots, err := s.store.RecentSnapshots(ctx, sessionID, s.fuser.trendWindow)
	if err != nil {
		return MessageResult{}, fmt.Errorf("conversation: failed to load emotion history: %w", err)
	}

	latest := latestSnapshot(snapshots)
	recent := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		recent = append(recent, ChatMessage{Role: t.Role, Content: t.Content})
	}

	signal := s.classifier.Classify(ctx, message)
	fused := s.fuser.Fuse(signal, latest, snapshots, recent)
	fused.Message = message
	fused.Greeting = s.classifier.IsGreeting(message)

	if err := s.store.AppendTurn(ctx, Turn{
		SessionID: sessionID,
		Role:      ChatRoleUser,
		Content:   message,
		Crisis:    signal.Category == sentiment.CategoryCrisis,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return MessageResult{}, fmt.Errorf("conversation: failed to persist user turn: %w", err)
	}

	reply := s.responder.Respond(ctx, fused)
	result := MessageResult{SessionID: sessionID, Reply: reply}

	s.metrics.ObserveTurn(string(reply.Category), reply.Generated)
	s.metrics.ObserveTurnLatency(time.Since(start).Seconds())

	if err := s.store.AppendTurn(ctx, Turn{
		SessionID: sessionID,
		Role:      ChatRoleAssistant,
		Content:   reply.Text,
		Crisis:    reply.Crisis,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		wrapped := fmt.Errorf("conversation: failed to persist assistant turn: %w", err)
		if reply.Crisis {
			// The crisis reply still goes out; the storage failure rides along
			// so the caller cannot miss it.
			s.logger.Error("crisis reply persisted with error", "session_id", sessionID, "error", err.Error())
			return result, wrapped
		}
		return MessageResult{}, wrapped
	}

	s.logger.Info("turn processed",
		"session_id", sessionID,
		"category", reply.Category,
		"crisis", reply.Crisis,
		"generated", reply.Generated,
		"mismatch", fused.Mismatch,
	)
	return result, nil
}

// RecordEmotion aggregates per-face vectors into a snapshot and, when a
// session is supplied, persists it for later fusion.
func (s *Service) RecordEmotion(ctx context.Context, sessionID string, faces []emotion.FaceScores) (emotion.Snapshot, error) {
	snap, err := emotion.Aggregate(faces)
	if err != nil {
		return emotion.Snapshot{}, err
	}

	s.metrics.ObserveSnapshot(string(snap.Dominant))

	if sessionID != "" {
		if err := s.store.AppendSnapshot(ctx, sessionID, snap); err != nil {
			return emotion.Snapshot{}, fmt.Errorf("conversation: failed to persist snapshot: %w", err)
		}
	}
	return snap, nil
}

// latestSnapshot returns the newest snapshot, or the zero-face convention
// when the session has none yet.
func latestSnapshot(snaps []emotion.Snapshot) emotion.Snapshot {
	if len(snaps) == 0 {
		return emotion.Snapshot{
			Scores:        map[emotion.Label]float64{emotion.Neutral: 1.0},
			Dominant:      emotion.Neutral,
			Confidence:    0.0,
			FacesDetected: 0,
			Timestamp:     time.Now().UTC(),
		}
	}
	return snaps[len(snaps)-1]
}
