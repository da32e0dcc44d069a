package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocations(t *testing.T) {
	c, mr := setupTestCache(t)
	r := NewRevocations(c)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "s-1", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "s-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation expires with the token")
}

func TestRevocations_ExpiredTokenIsNotStored(t *testing.T) {
	c, mr := setupTestCache(t)
	r := NewRevocations(c)

	require.NoError(t, r.Revoke(context.Background(), "s-1", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revokedPrefix+"s-1"))

	require.NoError(t, r.Revoke(context.Background(), "s-2", time.Time{}))
	assert.True(t, mr.Exists(revokedPrefix+"s-2"))
	assert.Equal(t, DefaultRevocationTTL, mr.TTL(revokedPrefix+"s-2"))
}

func TestRevocations_RedisDown(t *testing.T) {
	c, mr := setupTestCache(t)
	r := NewRevocations(c)
	mr.Close()

	_, err := r.IsRevoked(context.Background(), "s-1")
	assert.Error(t, err)
}
