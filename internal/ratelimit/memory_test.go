package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() map[Category]Rule {
	return map[Category]Rule{
		CategoryGeneral: {MaxRequests: 5, Window: time.Minute},
		CategoryAuth:    {MaxRequests: 3, Window: time.Minute},
	}
}

func newTestLimiter(t *testing.T) (*MemoryLimiter, *time.Time) {
	t.Helper()
	l := NewMemoryLimiter(testRules(), time.Hour)
	t.Cleanup(l.Close)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiterExhaustsBudget(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		dec, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
		require.NoError(t, err)
		require.True(t, dec.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-(i+1), dec.Remaining, "remaining must decrease strictly")
		assert.Equal(t, 5, dec.Limit)
	}

	dec, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Greater(t, dec.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, dec.RetryAfter, time.Minute)
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
		require.NoError(t, err)
	}

	// Prior denial does not matter: once the window elapses the count
	// restarts at 1.
	*now = now.Add(time.Minute)
	dec, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	assert.Equal(t, 4, dec.Remaining)
	assert.Equal(t, now.Add(time.Minute), dec.ResetAt)
}

func TestMemoryLimiterWindowStaysFixed(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	first, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)

	// Requests later in the window must not slide the reset point.
	*now = now.Add(30 * time.Second)
	second, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)
	assert.Equal(t, first.ResetAt, second.ResetAt)
}

func TestMemoryLimiterCategoriesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
		require.NoError(t, err)
		require.True(t, dec.Allowed)
	}
	dec, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	// Exhausting auth leaves general untouched for the same client.
	dec, err = l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	assert.Equal(t, 4, dec.Remaining)
}

func TestMemoryLimiterClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.Check(ctx, "10.0.0.1", CategoryAuth)
		require.NoError(t, err)
	}

	dec, err := l.Check(ctx, "10.0.0.2", CategoryAuth)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	assert.Equal(t, 2, dec.Remaining)
}

func TestMemoryLimiterUnknownCategoryUsesGeneralRule(t *testing.T) {
	l, _ := newTestLimiter(t)

	dec, err := l.Check(context.Background(), "10.0.0.1", Category("mystery"))
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	assert.Equal(t, 5, dec.Limit)
}

func TestMemoryLimiterConcurrentChecksNeverOvershoot(t *testing.T) {
	l := NewMemoryLimiter(map[Category]Rule{
		CategoryGeneral: {MaxRequests: 50, Window: time.Minute},
	}, time.Hour)
	defer l.Close()

	const callers = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := l.Check(context.Background(), "10.0.0.1", CategoryGeneral)
			if err != nil {
				return
			}
			if dec.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed, "exactly the budget must be admitted under contention")
}

func TestMemoryLimiterSweepDropsElapsedWindows(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	_, err := l.Check(ctx, "10.0.0.1", CategoryGeneral)
	require.NoError(t, err)
	_, err = l.Check(ctx, "10.0.0.2", CategoryAuth)
	require.NoError(t, err)
	require.Equal(t, 2, l.size())

	*now = now.Add(2 * time.Minute)
	l.removeElapsed()
	assert.Equal(t, 0, l.size())
}

func TestMemoryLimiterCloseIsIdempotent(t *testing.T) {
	l := NewMemoryLimiter(testRules(), time.Hour)
	l.Close()
	l.Close()
}
