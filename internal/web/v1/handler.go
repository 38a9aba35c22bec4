package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arteral/access-service/internal/core/domain"
	logicv1 "github.com/arteral/access-service/internal/logic/v1"
	"github.com/arteral/access-service/internal/ratelimit"
	"github.com/arteral/access-service/middleware"
)

// CookieSettings describes how the session cookie is issued.
type CookieSettings struct {
	Name   string
	Secure bool
}

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	auth   *logicv1.AuthService
	cookie CookieSettings
}

// NewHandler creates a new Handler with the given AuthService and cookie
// settings.
func NewHandler(auth *logicv1.AuthService, cookie CookieSettings) *Handler {
	return &Handler{auth: auth, cookie: cookie}
}

// RegisterRoutes registers all auth API v1 routes on the given router
// group. Every route is gated by the limiter first; session resolution
// only happens for requests that are within quota.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limiter ratelimit.Limiter) {
	rg.POST("/auth/register", middleware.RateLimit(limiter, ratelimit.CategoryAuth), h.Register)
	rg.POST("/auth/login", middleware.RateLimit(limiter, ratelimit.CategoryAuth), h.Login)
	rg.POST("/auth/logout", middleware.RateLimit(limiter, ratelimit.CategoryWrite), h.Logout)
	rg.GET("/auth/me",
		middleware.RateLimit(limiter, ratelimit.CategoryGeneral),
		middleware.RequireSession(h.auth, h.cookie.Name),
		h.GetMe)
	rg.POST("/auth/password",
		middleware.RateLimit(limiter, ratelimit.CategoryPasswordReset),
		middleware.RequireSession(h.auth, h.cookie.Name),
		h.ChangePassword)
}

// Login handles HTTP request for user login.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Invalid login request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	response, err := h.auth.Login(ctx, req)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Login failed")

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials), errors.Is(err, logicv1.ErrUserNotFound):
			// One message for both cases, so responses cannot be used to
			// probe which emails are registered.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.setSessionCookie(c, response.Token)
	logger.Info().Str("user_id", response.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, response)
}

// Register handles HTTP request for user registration.
func (h *Handler) Register(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Invalid registration request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	response, err := h.auth.Register(ctx, req)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Str("username", req.Username).Msg("Registration failed")

		switch {
		case errors.Is(err, logicv1.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.setSessionCookie(c, response.Token)
	logger.Info().Str("user_id", response.User.ID).Msg("Registration successful")
	c.JSON(http.StatusCreated, response)
}

// Logout invalidates the presented session and instructs the client to
// drop the cookie. Logging out without a live session still succeeds.
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	if token := middleware.SessionToken(c, h.cookie.Name); token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			span.RecordError(err)
			logger.Error().Err(err).Msg("Logout failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// GetMe returns the authenticated caller. Session resolution already
// happened in RequireSession.
func (h *Handler) GetMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword rotates the caller's credential. Every session of the
// user is revoked as a side effect, including the one used for this
// request, so the cookie is cleared and the caller must log in again.
func (h *Handler) ChangePassword(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	userID, err := strconv.Atoi(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var req domain.ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Invalid password change request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.auth.ChangePassword(ctx, userID, req); err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("Password change failed")

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials), errors.Is(err, logicv1.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	h.clearSessionCookie(c)
	logger.Info().Str("user_id", user.ID).Msg("Password changed, sessions revoked")
	c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := int(h.auth.SessionTTL().Seconds())
	c.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	// Negative MaxAge is serialized as Max-Age=0: immediate expiry.
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}
