package conversation

import (
	"context"
	"time"

	"github.com/attunehealth/attune/internal/emotion"
)

// Turn is one persisted conversation entry. Turns accumulate for the life of
// a session and are never mutated after creation.
type Turn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Crisis    bool      `json:"crisis"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the session store boundary the engine reads history from and
// writes new entries to. The engine never retries writes; retry policy
// belongs to the storage implementation.
type Store interface {
	CreateSession(ctx context.Context) (string, error)
	AppendTurn(ctx context.Context, turn Turn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	AppendSnapshot(ctx context.Context, sessionID string, snap emotion.Snapshot) error
	// RecentSnapshots returns up to limit snapshots ordered oldest first.
	RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]emotion.Snapshot, error)
}
