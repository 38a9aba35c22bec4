package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/arteral/access-service/internal/core/domain"
)

const currentUserKey = "current_user"

// SessionResolver maps a bearer token to its user. Implemented by the
// logic layer; declared here so middleware stays independent of it.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*domain.User, error)
}

// RequireSession rejects requests that do not carry a valid session, via
// either the session cookie or an Authorization bearer header. The reason
// (absent, unknown or expired token) is never revealed to the caller. A
// storage failure is not an auth verdict: it maps to 500, never 401, so
// a database outage does not tell valid users their session is gone. On
// success the user is stored on the gin context for handlers.
func RequireSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		user, err := resolver.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				zerolog.Ctx(c.Request.Context()).Error().Err(err).
					Msg("Session resolution failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// SessionToken extracts the bearer token from the session cookie, falling
// back to the Authorization header.
func SessionToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	const bearerPrefix = "Bearer "
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return auth[len(bearerPrefix):]
	}
	return ""
}

// CurrentUser returns the user set by RequireSession.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}
