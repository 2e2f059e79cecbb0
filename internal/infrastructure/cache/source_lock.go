package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	syncapp "github.com/petshop/backend/internal/application/sync"
)

// lockEntry is one held source lock with its expiry
type lockEntry struct {
	jobID     uuid.UUID
	expiresAt time.Time
}

// InMemorySourceLock enforces the single-active-job-per-source rule with an
// in-process map. Suitable for single-instance deployments and testing; a
// multi-instance deployment needs the Redis variant.
type InMemorySourceLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]lockEntry
}

// NewInMemorySourceLock creates a new in-memory source lock
func NewInMemorySourceLock() *InMemorySourceLock {
	return &InMemorySourceLock{locks: make(map[uuid.UUID]lockEntry)}
}

// TryAcquire claims the source for the given job. It returns false when
// another job already holds an unexpired lock. The TTL guards against a
// crashed job pinning its source forever.
func (l *InMemorySourceLock) TryAcquire(ctx context.Context, sourceID, jobID uuid.UUID, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, held := l.locks[sourceID]; held && time.Now().Before(entry.expiresAt) {
		return false, nil
	}

	l.locks[sourceID] = lockEntry{
		jobID:     jobID,
		expiresAt: time.Now().Add(ttl),
	}
	return true, nil
}

// Release frees the source's lock, but only when jobID is still the holder.
// After a TTL expiry another job may have claimed the slot; its lock must
// survive a release from the previous holder.
func (l *InMemorySourceLock) Release(ctx context.Context, sourceID, jobID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, held := l.locks[sourceID]; held && entry.jobID == jobID {
		delete(l.locks, sourceID)
	}
	return nil
}

var _ syncapp.SourceLock = (*InMemorySourceLock)(nil)
