package warehouse

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const blocklistKeyPrefix = "warehouse:jti:"

// RedisBlocklist stores revoked token ids in redis, each entry expiring on
// its own once the token it shadows would have expired anyway.
type RedisBlocklist struct {
	client *redis.Client
	prefix string
}

var _ Blocklist = (*RedisBlocklist)(nil)

// NewRedisBlocklist wraps an existing redis client
func NewRedisBlocklist(client *redis.Client) *RedisBlocklist {
	return &RedisBlocklist{
		client: client,
		prefix: blocklistKeyPrefix,
	}
}

// Revoke records the jti until ttl elapses
func (b *RedisBlocklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("cannot revoke a token without an id", errors.CategoryBadInput)
	}
	if ttl <= 0 {
		// Already past its expiry, nothing to track
		return nil
	}

	if err := b.client.Set(ctx, b.prefix+jti, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "blocklist revoke failed")
	}

	return nil
}

// IsRevoked reports whether the jti has been revoked. Redis being down is an
// error, not a pass: gates fail closed.
func (b *RedisBlocklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	n, err := b.client.Exists(ctx, b.prefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryOperation, "blocklist lookup failed")
	}

	return n > 0, nil
}

// MemoryBlocklist is an in process Blocklist for tests and single node
// deployments. Expired entries are pruned lazily on lookup.
type MemoryBlocklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

var _ Blocklist = (*MemoryBlocklist)(nil)

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{
		revoked: map[string]time.Time{},
	}
}

func (b *MemoryBlocklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("cannot revoke a token without an id", errors.CategoryBadInput)
	}
	if ttl <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = time.Now().Add(ttl)

	return nil
}

func (b *MemoryBlocklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	deadline, ok := b.revoked[jti]
	if !ok {
		return false, nil
	}

	if time.Now().After(deadline) {
		delete(b.revoked, jti)
		return false, nil
	}

	return true, nil
}
