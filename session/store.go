package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// NewLockOwner mints a unique owner token for TryLock, so a caller that
// opts into the advisory lock doesn't need its own identifier scheme.
func NewLockOwner() string {
	return uuid.NewString()
}

// Store is the Session Store contract (spec §6.1): get/setex/exists,
// specialized to the three things the Controller and Orchestration Job
// actually key on — the session document, the turn-level idempotency
// marker, and the job-level orchestrated marker — plus the advisory
// per-session lock spec §9 envisions as an optional strengthening.
type Store interface {
	// LoadSession returns the raw JSON at (tenantID, waID), or found=false
	// if no session has been persisted yet.
	LoadSession(ctx context.Context, tenantID, waID string) (raw string, found bool, err error)

	// SaveSession persists raw JSON with the given TTL, refreshing it.
	SaveSession(ctx context.Context, tenantID, waID, raw string, ttl time.Duration) error

	// IsProcessed reports whether messageID's idempotency marker exists
	// (spec §4.1 step 1).
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// MarkProcessed writes the turn-level idempotency marker (spec §4.1
	// step 6).
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error

	// IsOrchestrated reports whether messageID's job-scope marker exists
	// (spec §4.7's second, coarser idempotency layer).
	IsOrchestrated(ctx context.Context, messageID string) (bool, error)

	// MarkOrchestrated writes the job-scope marker.
	MarkOrchestrated(ctx context.Context, messageID string, ttl time.Duration) error

	// TryLock acquires the advisory per-session lock (spec §9 "if stricter
	// ordering is required later"), returning true if owner now holds it.
	// Not called by the Controller's default concurrency policy.
	TryLock(ctx context.Context, tenantID, waID, owner string, ttl time.Duration) (bool, error)

	// Unlock releases the advisory lock. Best-effort: it does not verify
	// owner still holds the lock before deleting, since ownership
	// verification would need a Lua script this module doesn't carry for
	// a capability the Controller doesn't exercise.
	Unlock(ctx context.Context, tenantID, waID, owner string) error
}

func sessionKey(tenantID, waID string) string {
	return fmt.Sprintf("session:%s:%s", tenantID, waID)
}

func processedKey(messageID string) string {
	return fmt.Sprintf("turn:processed:%s", messageID)
}

func orchestratedKey(messageID string) string {
	return fmt.Sprintf("orchestrated:%s", messageID)
}

func lockKey(tenantID, waID string) string {
	return fmt.Sprintf("lock:session:%s:%s", tenantID, waID)
}

// RedisStore implements Store over core.RedisClient, isolated to
// core.RedisDBSessions (spec §6.1).
type RedisStore struct {
	client *core.RedisClient
}

// NewRedisStore wraps an already-connected RedisClient.
func NewRedisStore(client *core.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) LoadSession(ctx context.Context, tenantID, waID string) (string, bool, error) {
	return s.client.Get(ctx, sessionKey(tenantID, waID))
}

func (s *RedisStore) SaveSession(ctx context.Context, tenantID, waID, raw string, ttl time.Duration) error {
	return s.client.SetEx(ctx, sessionKey(tenantID, waID), raw, ttl)
}

func (s *RedisStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	return s.client.Exists(ctx, processedKey(messageID))
}

func (s *RedisStore) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	return s.client.SetEx(ctx, processedKey(messageID), "1", ttl)
}

func (s *RedisStore) IsOrchestrated(ctx context.Context, messageID string) (bool, error) {
	return s.client.Exists(ctx, orchestratedKey(messageID))
}

func (s *RedisStore) MarkOrchestrated(ctx context.Context, messageID string, ttl time.Duration) error {
	return s.client.SetEx(ctx, orchestratedKey(messageID), "1", ttl)
}

func (s *RedisStore) TryLock(ctx context.Context, tenantID, waID, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, lockKey(tenantID, waID), owner, ttl)
}

func (s *RedisStore) Unlock(ctx context.Context, tenantID, waID, owner string) error {
	return s.client.Del(ctx, lockKey(tenantID, waID))
}
