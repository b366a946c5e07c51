package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/transport/http/middleware"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	// Debug carries the internal error text outside production.
	Debug string `json:"debug,omitempty"`
}

// ErrorResponse documents failure bodies in the API reference.
type ErrorResponse = Response

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, message string) Response {
	return Response{
		Success: false,
		Message: message,
		TraceID: middleware.GetTraceID(c),
	}
}

func newSuccessResponse(c *gin.Context, message string, data any) Response {
	return Response{
		Success: true,
		Message: message,
		Data:    data,
		TraceID: middleware.GetTraceID(c),
	}
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Username string `json:"username" example:"mario"`
	Email    string `json:"email" example:"mario@example.com"`
	Password string `json:"password" example:"S3cure!pass"`
}

// RegisterData is returned after a successful registration.
type RegisterData struct {
	User                 domain.PublicUser `json:"user"`
	RequiresVerification bool              `json:"requiresVerification"`
}

// LoginRequest carries user credentials.
type LoginRequest struct {
	Email    string `json:"email" example:"mario@example.com"`
	Password string `json:"password" example:"S3cure!pass"`
}

// AuthData is returned by flows that sign the user in.
type AuthData struct {
	User             domain.PublicUser `json:"user"`
	Token            string            `json:"token"`
	RefreshToken     string            `json:"refreshToken"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	RefreshExpiresAt time.Time         `json:"refreshExpiresAt"`
}

// LockedData accompanies 423 responses.
type LockedData struct {
	Locked   bool `json:"locked"`
	LockTime int  `json:"lockTime"`
}

// AttemptsLeftData accompanies a wrong password on an unlocked account.
type AttemptsLeftData struct {
	AttemptsLeft int `json:"attemptsLeft"`
}

// VerificationRequiredData accompanies a login on an unverified account.
type VerificationRequiredData struct {
	RequiresVerification bool   `json:"requiresVerification"`
	Email                string `json:"email"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email string `json:"email" example:"mario@example.com"`
}

// ResetPasswordRequest is the reset form. Token may also come from the path.
type ResetPasswordRequest struct {
	Token           string `json:"token,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// RefreshRequest carries the refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshData is returned by the refresh endpoint. The refresh token is not rotated.
type RefreshData struct {
	AccessToken string            `json:"accessToken"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	User        domain.PublicUser `json:"user"`
}

// UserData wraps a user snapshot.
type UserData struct {
	User domain.PublicUser `json:"user"`
}

// SessionSummary is the client view of a session. The refresh token is never exposed.
type SessionSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserAgent *string   `json:"userAgent,omitempty"`
	IPAddress *string   `json:"ipAddress,omitempty"`
}

// SessionsData lists the caller's live sessions.
type SessionsData struct {
	Sessions []SessionSummary `json:"sessions"`
}

// LogoutAllData reports how many sessions were removed.
type LogoutAllData struct {
	Revoked int `json:"revoked"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newSessionSummary(s domain.Session) SessionSummary {
	return SessionSummary{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		ExpiresAt: s.ExpiresAt,
		UserAgent: s.UserAgent,
		IPAddress: s.IPAddress,
	}
}
