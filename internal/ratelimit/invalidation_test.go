package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateIP(t *testing.T) {
	limiter := newFallbackLimiter(Config{IPLimitPerMin: 3, BurstMultiplier: 1})
	defer limiter.Close()

	ctx := context.Background()
	ip := "192.168.1.1"

	// Use up all requests (burst floor is 5)
	for i := 0; i < 5; i++ {
		_, err := limiter.AllowIP(ctx, ip)
		require.NoError(t, err)
	}

	// Next request should be blocked
	result, err := limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Invalidate IP
	err = limiter.InvalidateIP(ctx, ip)
	require.NoError(t, err)

	// After invalidation, IP should have fresh limits
	result, err = limiter.AllowIP(ctx, ip)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "Request should be allowed after IP invalidation")
}

func TestInvalidateIPDoesNotAffectOtherIPs(t *testing.T) {
	limiter := newFallbackLimiter(Config{IPLimitPerMin: 3, BurstMultiplier: 1})
	defer limiter.Close()

	ctx := context.Background()

	// Exhaust both IPs
	for i := 0; i < 6; i++ {
		_, _ = limiter.AllowIP(ctx, "10.0.0.1")
		_, _ = limiter.AllowIP(ctx, "10.0.0.2")
	}

	// Invalidate only the first IP
	err := limiter.InvalidateIP(ctx, "10.0.0.1")
	require.NoError(t, err)

	result, err := limiter.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// The second IP is still exhausted
	result, err = limiter.AllowIP(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestInvalidateAll(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())
	defer limiter.Close()

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	// Create multiple rate limiters
	keys := []string{"ship:1", "ship:2", "ip:1", "ip:2"}
	for _, key := range keys {
		for i := 0; i < 3; i++ {
			_, err := limiter.Allow(ctx, key, rateLimit)
			require.NoError(t, err)
		}
	}

	// Verify limiters exist
	stats := limiter.GetStats()
	assert.Greater(t, stats["fallback_limiters"].(int), 0)

	// Invalidate all
	err := limiter.InvalidateAll(ctx)
	require.NoError(t, err)

	// After invalidation, all keys should have fresh limits
	for _, key := range keys {
		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "Key %s should have fresh limits", key)
	}
}

func TestGetKeyCount(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())
	defer limiter.Close()

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	// Initially should have no keys
	count, err := limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Create some limiters
	keys := []string{"ship:1", "ship:2", "ship:3"}
	for _, key := range keys {
		_, _ = limiter.Allow(ctx, key, rateLimit)
	}

	// Should have 3 keys
	count, err = limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCleanupExpiredIsSafe(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())
	defer limiter.Close()

	assert.NoError(t, limiter.CleanupExpired(context.Background()))
}
