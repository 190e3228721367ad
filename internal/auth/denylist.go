package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
)

// DenyList records revoked token ids until their natural expiry.
type DenyList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenyList keeps revocations in process memory. Entries are pruned
// lazily once they pass their expiry.
type MemoryDenyList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ DenyList = (*MemoryDenyList)(nil)

// NewMemoryDenyList creates an empty in-memory deny-list.
func NewMemoryDenyList() *MemoryDenyList {
	return &MemoryDenyList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (d *MemoryDenyList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()
	if until.After(d.now()) {
		d.entries[tokenID] = until
	}
	return nil
}

func (d *MemoryDenyList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !d.now().Before(until) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDenyList) pruneLocked() {
	now := d.now()
	for id, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, id)
		}
	}
}

const denyKeyPrefix = "auth:revoked:"

// RedisDenyList shares revocations across server instances. Each entry is a
// key whose TTL matches the remaining token lifetime.
type RedisDenyList struct {
	pool *redis.Pool
	now  func() time.Time
}

var _ DenyList = (*RedisDenyList)(nil)

// NewRedisDenyList wraps an existing pool.
func NewRedisDenyList(pool *redis.Pool) *RedisDenyList {
	return &RedisDenyList{pool: pool, now: time.Now}
}

// NewRedisPool dials rawURL lazily, one connection per borrow.
func NewRedisPool(rawURL string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, rawURL)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func (d *RedisDenyList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	seconds := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	if seconds <= 0 {
		return nil
	}

	conn, err := d.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", denyKeyPrefix+tokenID, 1, "EX", seconds); err != nil {
		return fmt.Errorf("redis revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenyList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	conn, err := d.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis get conn: %w", err)
	}
	defer conn.Close()

	exists, err := redis.Bool(conn.Do("EXISTS", denyKeyPrefix+tokenID))
	if err != nil {
		return false, fmt.Errorf("redis check token: %w", err)
	}
	return exists, nil
}
