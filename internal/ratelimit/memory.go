package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is one fixed window for one (client, category) key.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-process fixed-window limiter backed by a mutex-
// protected map. State is local to the process, so in multi-replica
// deployments each replica enforces its own budget; use RedisLimiter when
// a single global budget is required.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	rules   map[Category]Rule

	now  func() time.Time
	done chan struct{}
}

// NewMemoryLimiter creates a memory limiter with the given rules and
// starts a background sweeper that drops elapsed windows every
// sweepInterval, bounding memory for high-cardinality clients. Close stops
// the sweeper.
func NewMemoryLimiter(rules map[Category]Rule, sweepInterval time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		rules:   rules,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.sweep(sweepInterval)
	return l
}

// Check applies the fixed-window algorithm for the key. The whole
// read-check-increment runs under the limiter lock, so concurrent callers
// for the same key serialize and at most MaxRequests acceptances occur per
// window.
func (l *MemoryLimiter) Check(_ context.Context, clientID string, category Category) (Decision, error) {
	rule := ruleFor(l.rules, category)
	now := l.now()
	k := key(clientID, category)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || !now.Before(w.resetAt) {
		// First observation, or the previous window elapsed: replace it.
		w = &window{count: 1, resetAt: now.Add(rule.Window)}
		l.windows[k] = w
		return Decision{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests - 1,
			ResetAt:   w.resetAt,
		}, nil
	}

	if w.count < rule.MaxRequests {
		w.count++
		return Decision{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests - w.count,
			ResetAt:   w.resetAt,
		}, nil
	}

	return Decision{
		Allowed:    false,
		Limit:      rule.MaxRequests,
		Remaining:  0,
		ResetAt:    w.resetAt,
		RetryAfter: w.resetAt.Sub(now),
	}, nil
}

// Close stops the background sweeper. Check remains usable afterwards but
// elapsed windows are then only replaced on access.
func (l *MemoryLimiter) Close() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

func (l *MemoryLimiter) sweep(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.removeElapsed()
		}
	}
}

func (l *MemoryLimiter) removeElapsed() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// size reports the number of live windows; used by tests and debug logs.
func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
