package domain

// User is the public shape of an authenticated account, safe to return to
// clients (never carries the credential digest).
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest carries login credentials. Endpoints accept both form posts
// (the site's own pages) and JSON (API clients).
type LoginRequest struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required"`
}

// RegisterRequest carries a new account registration.
type RegisterRequest struct {
	Username string `form:"username" json:"username" binding:"required,min=2,max=64"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,min=8,max=128"`
}

// ChangePasswordRequest carries a credential change for the current user.
type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password" binding:"required"`
	NewPassword     string `form:"new_password" json:"new_password" binding:"required,min=8,max=128"`
}

// AuthResponse is returned on successful login or registration. The token
// is also set as the session cookie; it is included in the body for
// non-browser clients that prefer the Authorization header.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
