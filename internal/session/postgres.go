package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/emotion"
)

// sessionDB defines the database interface needed by PostgresStore.
type sessionDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the durable session store: conversation turns and emotion
// snapshots, queryable by session, plus aggregate statistics.
type PostgresStore struct {
	db sessionDB
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("session: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// NewPostgresStoreWithDB allows injecting a mock database for testing.
func NewPostgresStoreWithDB(db sessionDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSession inserts a new session row and returns its identifier.
func (s *PostgresStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (session_id) VALUES ($1)`, id)
	if err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	return id, nil
}

// AppendTurn persists one conversation turn and touches the session.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn conversation.Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO messages (session_id, role, content, crisis, created_at) VALUES ($1, $2, $3, $4, $5)`,
		turn.SessionID, turn.Role, turn.Content, turn.Crisis, ts)
	if err != nil {
		return fmt.Errorf("session: append turn: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE session_id = $2`, ts, turn.SessionID)
	if err != nil {
		return fmt.Errorf("session: touch session: %w", err)
	}
	return nil
}

// ListTurns returns up to limit most recent turns, ordered oldest first.
func (s *PostgresStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT session_id, role, content, crisis, created_at
		 FROM messages WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("session: list turns: %w", err)
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		var t conversation.Turn
		if err := rows.Scan(&t.SessionID, &t.Role, &t.Content, &t.Crisis, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("session: scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: list turns: %w", err)
	}
	reverseTurns(turns)
	return turns, nil
}

// AppendSnapshot persists one aggregated emotion snapshot.
func (s *PostgresStore) AppendSnapshot(ctx context.Context, sessionID string, snap emotion.Snapshot) error {
	scores, err := json.Marshal(snap.Scores)
	if err != nil {
		return fmt.Errorf("session: marshal scores: %w", err)
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO emotions (session_id, dominant, scores, confidence, faces_detected, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, string(snap.Dominant), scores, snap.Confidence, snap.FacesDetected, ts)
	if err != nil {
		return fmt.Errorf("session: append snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit most recent snapshots, oldest first.
func (s *PostgresStore) RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]emotion.Snapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT dominant, scores, confidence, faces_detected, created_at
		 FROM emotions WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("session: recent snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []emotion.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: recent snapshots: %w", err)
	}
	reverseSnapshots(snaps)
	return snaps, nil
}

// EmotionDistribution is per-label counts with average confidence.
type EmotionDistribution struct {
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Stats aggregates one session's activity.
type Stats struct {
	SessionID           string                         `json:"session_id"`
	MessageCount        int64                          `json:"message_count"`
	CrisisCount         int64                          `json:"crisis_count"`
	EmotionDistribution map[string]EmotionDistribution `json:"emotion_distribution"`
	CreatedAt           time.Time                      `json:"created_at"`
	UpdatedAt           time.Time                      `json:"updated_at"`
}

// GetStats returns aggregated statistics for a session.
func (s *PostgresStore) GetStats(ctx context.Context, sessionID string) (*Stats, error) {
	stats := &Stats{
		SessionID:           sessionID,
		EmotionDistribution: make(map[string]EmotionDistribution),
	}

	err := s.db.QueryRow(ctx,
		`SELECT created_at, updated_at FROM sessions WHERE session_id = $1`,
		sessionID).Scan(&stats.CreatedAt, &stats.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("session: stats session row: %w", err)
	}

	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = $1`,
		sessionID).Scan(&stats.MessageCount); err != nil {
		return nil, fmt.Errorf("session: stats message count: %w", err)
	}

	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = $1 AND crisis`,
		sessionID).Scan(&stats.CrisisCount); err != nil {
		return nil, fmt.Errorf("session: stats crisis count: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT dominant, COUNT(*), AVG(confidence)
		 FROM emotions WHERE session_id = $1 GROUP BY dominant`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: stats emotion distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dominant string
		var dist EmotionDistribution
		if err := rows.Scan(&dominant, &dist.Count, &dist.AvgConfidence); err != nil {
			return nil, fmt.Errorf("session: scan distribution: %w", err)
		}
		stats.EmotionDistribution[dominant] = dist
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: stats emotion distribution: %w", err)
	}
	return stats, nil
}

func scanSnapshot(rows pgx.Rows) (emotion.Snapshot, error) {
	var (
		snap     emotion.Snapshot
		dominant string
		scores   []byte
	)
	if err := rows.Scan(&dominant, &scores, &snap.Confidence, &snap.FacesDetected, &snap.Timestamp); err != nil {
		return emotion.Snapshot{}, fmt.Errorf("session: scan snapshot: %w", err)
	}
	snap.Dominant = emotion.Label(dominant)
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &snap.Scores); err != nil {
			return emotion.Snapshot{}, fmt.Errorf("session: decode scores: %w", err)
		}
	}
	return snap, nil
}

func reverseTurns(turns []conversation.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func reverseSnapshots(snaps []emotion.Snapshot) {
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
}
