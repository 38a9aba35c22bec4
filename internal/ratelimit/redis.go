package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable wraps Redis failures so callers can pick their own
// availability-versus-protection policy without matching on driver errors.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

const defaultKeyPrefix = "rl:"

// RedisLimiter enforces fixed windows in Redis via INCR with an expiry set
// on the first increment, so one budget is shared by every replica. Key
// expiry doubles as the sweep: Redis drops elapsed windows on its own.
type RedisLimiter struct {
	client *redis.Client
	rules  map[Category]Rule
	prefix string
}

// NewRedisLimiter creates a Redis-backed limiter. The client is owned by
// the caller and is not closed by Close.
func NewRedisLimiter(client *redis.Client, rules map[Category]Rule) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		rules:  rules,
		prefix: defaultKeyPrefix,
	}
}

// Check increments the window counter for the key and compares it against
// the category budget. INCR is atomic in Redis, so concurrent replicas
// cannot overshoot the budget.
func (l *RedisLimiter) Check(ctx context.Context, clientID string, category Category) (Decision, error) {
	rule := ruleFor(l.rules, category)
	k := l.prefix + key(clientID, category)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, rule.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ttl < 0 {
		// Expiry lost (e.g. the key predates a crashed Expire call);
		// reinstate it so the window still ends.
		ttl = rule.Window
		if err := l.client.Expire(ctx, k, rule.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	resetAt := time.Now().Add(ttl)

	remaining := rule.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(rule.MaxRequests) {
		return Decision{
			Allowed:    false,
			Limit:      rule.MaxRequests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: ttl,
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Close is a no-op; the Redis client belongs to the caller.
func (l *RedisLimiter) Close() {}
