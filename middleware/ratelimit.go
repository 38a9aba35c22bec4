package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/arteral/access-service/internal/ratelimit"
)

// unknownClient buckets every request whose network origin cannot be
// determined. Clients behind an unidentifiable proxy therefore share one
// budget; an accepted limitation.
const unknownClient = "unknown"

// RateLimit gates requests through the limiter under the given category.
// It runs before any session or credential work, so denied requests cost
// nothing beyond the counter lookup, and rate accounting is unconditional:
// requests that later fail authentication still consume quota.
//
// A limiter backend failure fails open: the request is allowed, the
// failure is logged and counted. Governance must not turn a cache outage
// into a full outage.
func RateLimit(limiter ratelimit.Limiter, category ratelimit.Category) gin.HandlerFunc {
	return func(c *gin.Context) {
		dec, err := limiter.Check(c.Request.Context(), ClientKey(c), category)
		if err != nil {
			log.Warn().Err(err).Str("category", string(category)).
				Msg("Rate limit check failed, allowing request")
			recordRateLimitError()
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))

		if !dec.Allowed {
			retryAfter := int(math.Ceil(dec.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			recordRateLimited(string(category))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}

		c.Next()
	}
}

// ClientKey derives the rate-limit identity of a request: the first
// forwarded address when present, else the connection's remote address,
// else the shared unknown bucket.
func ClientKey(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil && host != "" {
		return host
	}
	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}
	return unknownClient
}
