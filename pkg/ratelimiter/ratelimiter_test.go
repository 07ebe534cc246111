package ratelimiter

import (
	"context"
	"testing"
	"time"

	"anoa.com/threadfeed/pkg/apperror"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, s
}

func TestCheckAndSetRateLimit(t *testing.T) {
	rdb, s := setupRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	allowed, err := CheckAndSetRateLimit(ctx, rdb, userID, ScopeThread, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = CheckAndSetRateLimit(ctx, rdb, userID, ScopeThread, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, allowed, "second attempt inside the window must be refused")

	ttl, err := GetRateLimitTTL(ctx, rdb, userID, ScopeThread)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	s.FastForward(31 * time.Second)

	allowed, err = CheckAndSetRateLimit(ctx, rdb, userID, ScopeThread, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestScopesAreIndependent(t *testing.T) {
	rdb, _ := setupRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	allowed, err := CheckAndSetRateLimit(ctx, rdb, userID, ScopeThread, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = CheckAndSetRateLimit(ctx, rdb, userID, ScopeReply, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestClearRateLimit(t *testing.T) {
	rdb, _ := setupRedis(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := CheckAndSetRateLimit(ctx, rdb, userID, ScopeGlobal, time.Minute)
	require.NoError(t, err)
	require.NoError(t, ClearRateLimit(ctx, rdb, userID, ScopeGlobal))

	allowed, err := CheckAndSetRateLimit(ctx, rdb, userID, ScopeGlobal, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNilClientDisablesLimits(t *testing.T) {
	allowed, err := CheckAndSetRateLimit(context.Background(), nil, uuid.New(), ScopeGlobal, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimitErrorMapsTo429(t *testing.T) {
	var err error = &RateLimitError{Message: "slow down", RetryAfter: time.Second}
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assert.Equal(t, 429, apperror.MapErrorToStatus(err))
}
