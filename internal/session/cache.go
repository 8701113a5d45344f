package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/pkg/logging"
)

const (
	snapshotCacheTTL = 24 * time.Hour
	snapshotCacheLen = 20
)

// CachedStore layers a Redis cache for recent emotion snapshots over a
// durable store. Snapshot reads are hot-path (every chat turn fuses them), so
// they come from Redis when possible; Postgres stays the source of truth and
// serves misses.
type CachedStore struct {
	inner  conversation.Store
	redis  *redis.Client
	tracer trace.Tracer
	logger *logging.Logger
}

// NewCachedStore wraps inner with a Redis snapshot cache.
func NewCachedStore(inner conversation.Store, client *redis.Client, logger *logging.Logger) *CachedStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedStore{
		inner:  inner,
		redis:  client,
		tracer: otel.Tracer("attune.internal.session.cache"),
		logger: logger,
	}
}

func (s *CachedStore) CreateSession(ctx context.Context) (string, error) {
	return s.inner.CreateSession(ctx)
}

func (s *CachedStore) AppendTurn(ctx context.Context, turn conversation.Turn) error {
	return s.inner.AppendTurn(ctx, turn)
}

func (s *CachedStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	return s.inner.ListTurns(ctx, sessionID, limit)
}

// AppendSnapshot writes through to the durable store first; the cache is
// only updated once the write is known to have stuck.
func (s *CachedStore) AppendSnapshot(ctx context.Context, sessionID string, snap emotion.Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "session.append_snapshot")
	defer span.End()

	if err := s.inner.AppendSnapshot(ctx, sessionID, snap); err != nil {
		span.RecordError(err)
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal snapshot for cache: %w", err)
	}

	key := snapshotKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -snapshotCacheLen, -1)
	pipe.Expire(ctx, key, snapshotCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		// Cache update failure is not a storage failure; the durable write
		// already succeeded and reads fall back to Postgres.
		span.RecordError(err)
		s.logger.Warn("snapshot cache update failed", "session_id", sessionID, "error", err.Error())
	}
	return nil
}

func (s *CachedStore) RecentSnapshots(ctx context.Context, sessionID string, limit int) ([]emotion.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "session.recent_snapshots")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}

	entries, err := s.redis.LRange(ctx, snapshotKey(sessionID), int64(-limit), -1).Result()
	if err != nil || len(entries) == 0 {
		if err != nil && err != redis.Nil {
			span.RecordError(err)
			s.logger.Warn("snapshot cache read failed", "session_id", sessionID, "error", err.Error())
		}
		return s.inner.RecentSnapshots(ctx, sessionID, limit)
	}

	snaps := make([]emotion.Snapshot, 0, len(entries))
	for _, entry := range entries {
		var snap emotion.Snapshot
		if err := json.Unmarshal([]byte(entry), &snap); err != nil {
			span.RecordError(err)
			// Corrupt cache entry: drop the key and re-read from Postgres.
			s.redis.Del(ctx, snapshotKey(sessionID))
			return s.inner.RecentSnapshots(ctx, sessionID, limit)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("emotions:%s", sessionID)
}
