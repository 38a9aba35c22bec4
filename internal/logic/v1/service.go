package v1

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arteral/access-service/internal/core/domain"
	"github.com/arteral/access-service/middleware"
)

// AuthService implements the access-governance business rules: credential
// verification, session issuance and resolution, and bulk revocation.
// It depends on repository interfaces (injected via constructor) and
// MUST NOT access the database or SQL directly.
type AuthService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	hasher     *Hasher
	sessionTTL time.Duration
}

// NewAuthService creates a new AuthService. sessionTTL is fixed at session
// creation and never extended on use.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, hasher *Hasher, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		sessionTTL: sessionTTL,
	}
}

// SessionTTL returns the fixed lifetime applied to new sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login verifies credentials and issues a new session. Unknown email and
// wrong password produce errors the web layer maps to the same response,
// so callers cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user: %w: %v", ErrStorage, err)
	}
	if row == nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate: %w", ErrUserNotFound)
	}

	if !s.hasher.Verify(req.Password, row.PasswordHash) {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}

	// Best-effort; a failed timestamp update must not fail the login.
	if updateErr := s.users.UpdateLastLogin(ctx, row.ID); updateErr != nil {
		span.RecordError(fmt.Errorf("update last_login: %w", updateErr))
	}

	response, err := s.issueSession(ctx, row)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", response.User.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return response, nil
}

// Register creates a new account and issues its first session.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check existing user: %w: %v", ErrStorage, err)
	}
	if exists {
		span.SetAttributes(attribute.Bool("registration.success", false))
		return nil, fmt.Errorf("register user %q: %w", req.Username, ErrUserExists)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.users.Create(ctx, req.Username, req.Email, passwordHash)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert user: %w: %v", ErrStorage, err)
	}

	response, err := s.issueSession(ctx, &domain.UserRow{
		ID:       userID,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", response.User.ID),
		attribute.Bool("registration.success", true),
	)
	span.AddEvent("user.registered")

	return response, nil
}

// issueSession mints a token and persists the session. A storage failure
// here fails the whole operation: the caller must never end up
// half-authenticated with a token that was not durably recorded.
func (s *AuthService) issueSession(ctx context.Context, row *domain.UserRow) (*domain.AuthResponse, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	if err := s.sessions.Create(ctx, row.ID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("create session: %w: %v", ErrStorage, err)
	}

	return &domain.AuthResponse{
		Token: token,
		User: domain.User{
			ID:       strconv.Itoa(row.ID),
			Username: row.Username,
			Email:    row.Email,
		},
	}, nil
}

// ResolveSession returns the user owning a valid session token. An expired
// session is deleted on sight (lazy reaping) and treated as absent.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.resolve_session", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.sessions.GetUserByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query session: %w: %v", ErrStorage, err)
	}
	if row == nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, fmt.Errorf("lookup session: %w", ErrSessionNotFound)
	}

	if !time.Now().Before(row.ExpiresAt) {
		span.SetAttributes(attribute.Bool("session.valid", false))
		// Best-effort removal; the row is invalid either way.
		if delErr := s.sessions.Delete(ctx, token); delErr != nil {
			span.RecordError(fmt.Errorf("reap expired session: %w", delErr))
		}
		return nil, fmt.Errorf("session expired at %v: %w", row.ExpiresAt, ErrSessionExpired)
	}

	user := &domain.User{
		ID:       strconv.Itoa(row.UserID),
		Username: row.Username,
		Email:    row.Email,
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.Bool("session.valid", true),
	)

	return user, nil
}

// Logout invalidates a single session. Logging out an already-invalidated
// token succeeds.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if err := s.sessions.Delete(ctx, token); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete session: %w: %v", ErrStorage, err)
	}
	span.AddEvent("session.invalidated")
	return nil
}

// ChangePassword verifies the current credential, stores the new digest
// and revokes every session of the user, so a previously stolen token
// cannot survive the reset. The caller must log in again.
func (s *AuthService) ChangePassword(ctx context.Context, userID int, req domain.ChangePasswordRequest) error {
	ctx, span := middleware.StartSpan(ctx, "auth.change_password", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("user.id", userID),
	))
	defer span.End()

	row, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query user: %w: %v", ErrStorage, err)
	}
	if row == nil {
		return fmt.Errorf("change password: %w", ErrUserNotFound)
	}

	if !s.hasher.Verify(req.CurrentPassword, row.PasswordHash) {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return fmt.Errorf("change password: %w", ErrInvalidCredentials)
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password: %w: %v", ErrStorage, err)
	}

	// Credential changed: every outstanding session is now revoked.
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("invalidate sessions: %w: %v", ErrStorage, err)
	}

	span.AddEvent("credential.rotated")
	return nil
}
