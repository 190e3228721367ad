package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenyList(t *testing.T) {
	clock := newClock()
	d := NewMemoryDenyList()
	d.now = clock.Now
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", clock.now.Add(time.Minute)))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, liveEntries(d))

	clock.now = clock.now.Add(time.Minute)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, 0, liveEntries(d))
}

func TestMemoryDenyList_IgnoresExpired(t *testing.T) {
	clock := newClock()
	d := NewMemoryDenyList()
	d.now = clock.Now

	require.NoError(t, d.Revoke(context.Background(), "old", clock.now.Add(-time.Second)))
	assert.Equal(t, 0, liveEntries(d))
}

func TestRedisDenyList(t *testing.T) {
	mr := miniredis.RunT(t)
	pool := NewRedisPool("redis://" + mr.Addr())
	t.Cleanup(func() { pool.Close() })

	d := NewRedisDenyList(pool)
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(90*time.Second)))

	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(denyKeyPrefix + "jti-1")
	assert.Greater(t, ttl, 80*time.Second)
	assert.LessOrEqual(t, ttl, 91*time.Second)

	mr.FastForward(91 * time.Second)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisDenyList_SkipsExpiredTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	pool := NewRedisPool("redis://" + mr.Addr())
	t.Cleanup(func() { pool.Close() })

	d := NewRedisDenyList(pool)
	require.NoError(t, d.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(denyKeyPrefix+"old"))
}

func TestRedisDenyList_ServerDown(t *testing.T) {
	pool := NewRedisPool("redis://127.0.0.1:1")
	t.Cleanup(func() { pool.Close() })

	_, err := NewRedisDenyList(pool).IsRevoked(context.Background(), "jti-1")
	require.Error(t, err)
}

func TestTokenIssuer_WithRedisDenyList(t *testing.T) {
	mr := miniredis.RunT(t)
	pool := NewRedisPool("redis://" + mr.Addr())
	t.Cleanup(func() { pool.Close() })

	issuer := NewTokenIssuer(testSecret, WithDenyList(NewRedisDenyList(pool)))
	ctx := context.Background()

	raw, err := issuer.Issue("acct-1", RoleUser)
	require.NoError(t, err)
	id, err := issuer.Verify(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(ctx, id))
	_, err = issuer.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func liveEntries(d *MemoryDenyList) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	return len(d.entries)
}
