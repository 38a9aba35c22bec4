// Package ratelimit provides fixed-window request limiting keyed by
// (client identifier, endpoint category). Two backends implement the same
// Limiter contract: an in-process memory table for single-instance
// deployments and a Redis-backed table for sharing budgets across
// replicas.
//
// The fixed-window algorithm is a deliberate simplicity tradeoff: a window
// starts at the first request for a key and stays fixed until it elapses,
// which admits short bursts at window boundaries. That is acceptable for
// abuse mitigation, not for strict fairness.
package ratelimit

import (
	"context"
	"time"
)

// Category labels an endpoint class with its own independent budget.
// Exhausting one category never affects another.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryWrite         Category = "write"
	CategoryAuth          Category = "auth"
	CategoryPasswordReset Category = "password_reset"
	CategoryNewsletter    Category = "newsletter"
	CategorySubmission    Category = "submission"
	CategoryGuestbook     Category = "guestbook"
	CategoryContest       Category = "contest"
)

// Rule is the budget for one category.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRules returns the per-category budgets used in production.
func DefaultRules() map[Category]Rule {
	return map[Category]Rule{
		CategoryGeneral:       {MaxRequests: 100, Window: time.Minute},
		CategoryWrite:         {MaxRequests: 30, Window: time.Minute},
		CategoryAuth:          {MaxRequests: 10, Window: time.Minute},
		CategoryPasswordReset: {MaxRequests: 5, Window: time.Minute},
		CategoryNewsletter:    {MaxRequests: 5, Window: time.Hour},
		CategorySubmission:    {MaxRequests: 10, Window: time.Hour},
		CategoryGuestbook:     {MaxRequests: 20, Window: time.Hour},
		CategoryContest:       {MaxRequests: 5, Window: 24 * time.Hour},
	}
}

// Decision reports the outcome of a single Check call. The fields map
// directly onto rate-limit response headers.
type Decision struct {
	Allowed    bool
	Limit      int           // maximum requests per window
	Remaining  int           // requests left in the current window
	ResetAt    time.Time     // when the current window ends
	RetryAfter time.Duration // how long to wait; meaningful only when denied
}

// Limiter decides whether a request identified by (clientID, category) is
// within budget. Implementations must be safe for concurrent use; the
// read-check-increment for a single key is one atomic operation, so
// concurrent callers cannot push a key past its budget.
type Limiter interface {
	Check(ctx context.Context, clientID string, category Category) (Decision, error)

	// Close stops background goroutines and releases resources.
	Close()
}

func key(clientID string, category Category) string {
	return clientID + "|" + string(category)
}

// ruleFor resolves the rule for a category, falling back to the general
// budget for categories without an explicit rule.
func ruleFor(rules map[Category]Rule, category Category) Rule {
	if r, ok := rules[category]; ok {
		return r
	}
	if r, ok := rules[CategoryGeneral]; ok {
		return r
	}
	return Rule{MaxRequests: 100, Window: time.Minute}
}
