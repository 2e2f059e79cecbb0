package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	syncapp "github.com/petshop/backend/internal/application/sync"
)

const defaultSourceLockPrefix = "sync:source-lock:"

// releaseScript deletes the lock key only when its value still matches the
// releasing job. GET and DEL must be one atomic step; doing them as two
// round trips reopens the window the check is meant to close.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSourceLock enforces the single-active-job-per-source rule across
// instances using Redis SETNX with a TTL.
type RedisSourceLock struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSourceLock creates a Redis-backed source lock and verifies the
// connection before returning
func NewRedisSourceLock(client *redis.Client) (*RedisSourceLock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSourceLock{
		client:    client,
		keyPrefix: defaultSourceLockPrefix,
	}, nil
}

// NewRedisSourceLockWithClient creates a lock over an existing client without
// a connection check. Useful for testing or shared clients.
func NewRedisSourceLockWithClient(client *redis.Client, keyPrefix string) *RedisSourceLock {
	if keyPrefix == "" {
		keyPrefix = defaultSourceLockPrefix
	}
	return &RedisSourceLock{client: client, keyPrefix: keyPrefix}
}

// TryAcquire claims the source for the given job. SETNX makes the claim
// atomic across instances; the TTL releases locks left behind by crashes.
func (l *RedisSourceLock) TryAcquire(ctx context.Context, sourceID, jobID uuid.UUID, ttl time.Duration) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key(sourceID), jobID.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire source lock: %w", err)
	}
	return acquired, nil
}

// Release frees the source's lock only when jobID still holds it. A release
// arriving after the TTL expired leaves whatever lock replaced it in place.
func (l *RedisSourceLock) Release(ctx context.Context, sourceID, jobID uuid.UUID) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(sourceID)}, jobID.String()).Err(); err != nil {
		return fmt.Errorf("failed to release source lock: %w", err)
	}
	return nil
}

func (l *RedisSourceLock) key(sourceID uuid.UUID) string {
	return l.keyPrefix + sourceID.String()
}

var _ syncapp.SourceLock = (*RedisSourceLock)(nil)
