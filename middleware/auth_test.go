package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arteral/access-service/internal/core/domain"
)

type stubResolver struct {
	user *domain.User
	err  error
}

func (r stubResolver) ResolveSession(context.Context, string) (*domain.User, error) {
	return r.user, r.err
}

func authTestRouter(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", RequireSession(resolver, "arteral-session"), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, user)
	})
	return router
}

func doProtected(router *gin.Engine, withCookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: "arteral-session", Value: "some-token"})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireSessionSetsCurrentUser(t *testing.T) {
	router := authTestRouter(stubResolver{
		user: &domain.User{ID: "1", Username: "petra", Email: "petra@arteral.test"},
	})

	w := doProtected(router, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"petra"`)
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	router := authTestRouter(stubResolver{
		user: &domain.User{ID: "1"},
	})

	w := doProtected(router, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSessionRejectsInvalidToken(t *testing.T) {
	router := authTestRouter(stubResolver{err: fmt.Errorf("lookup session: no such token")})

	w := doProtected(router, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSessionStorageFailureIsNotAuthFailure(t *testing.T) {
	// An unreachable store is a server fault: the caller must see 500,
	// not be told their session is invalid.
	router := authTestRouter(stubResolver{
		err: fmt.Errorf("query session: %w: connection refused", domain.ErrStorageUnavailable),
	})

	w := doProtected(router, true)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
	assert.NotContains(t, w.Body.String(), "Authentication required")
}
