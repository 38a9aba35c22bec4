package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return NewRedisLimiter(client, testRules()), mr
}

func TestRedisLimiterExhaustsBudget(t *testing.T) {
	l, _ := newRedisTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
		require.NoError(t, err)
		require.True(t, dec.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3-(i+1), dec.Remaining)
	}

	dec, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Greater(t, dec.RetryAfter, time.Duration(0))
}

func TestRedisLimiterWindowResets(t *testing.T) {
	l, mr := newRedisTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute + time.Second)

	dec, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	assert.Equal(t, 2, dec.Remaining)
}

func TestRedisLimiterCategoriesAreIndependent(t *testing.T) {
	l, _ := newRedisTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
		require.NoError(t, err)
	}

	dec, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestRedisLimiterReportsBackendFailure(t *testing.T) {
	l, mr := newRedisTestLimiter(t)
	mr.Close()

	_, err := l.Check(context.Background(), "10.0.0.1", CategoryAuth)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
