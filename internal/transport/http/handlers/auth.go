package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/transport/http/middleware"
	"github.com/orsocook/orso-auth/internal/usecase"
)

// AuthHandler exposes the credential endpoints under /api/auth.
type AuthHandler struct {
	errorResponder
	auth *usecase.AuthService
}

// AuthHandlerOption configures optional AuthHandler behaviour.
type AuthHandlerOption func(*AuthHandler)

// WithExposedErrors adds internal error text to 500 responses. Development only.
func WithExposedErrors(expose bool) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.exposeErrors = expose
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{auth: auth}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Limits groups the optional rate limiting middleware per endpoint family.
type Limits struct {
	Register []gin.HandlerFunc
	Login    []gin.HandlerFunc
	Recovery []gin.HandlerFunc
}

// RegisterRoutes binds the public endpoints and the authenticated /me route.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, limits Limits) {
	r.POST("/register", chain(limits.Register, h.Register)...)
	r.POST("/register-with-verification", chain(limits.Register, h.Register)...)
	r.GET("/verify-email/:token", h.VerifyEmail)
	r.POST("/login", chain(limits.Login, h.Login)...)
	r.POST("/forgot-password", chain(limits.Recovery, h.ForgotPassword)...)
	r.POST("/reset-password/:token", chain(limits.Recovery, h.ResetPassword)...)
	r.POST("/reset-password", chain(limits.Recovery, h.ResetPassword)...)
	r.POST("/resend-verification", chain(limits.Recovery, h.ResendVerification)...)
	r.GET("/me", requireAuth, h.Me)
}

// Login godoc
// @Summary Sign in with email and password
// @Description Checks credentials against the lockout policy and opens the user's single session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} Response{data=AuthData}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} Response{data=AttemptsLeftData} "Invalid credentials"
// @Failure 403 {object} Response{data=VerificationRequiredData} "Email not verified"
// @Failure 423 {object} Response{data=LockedData} "Account locked"
// @Failure 429 {object} middleware.RateLimitedResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		h.badRequest(c, "invalid login payload")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		h.respondError(c, err, "login failed")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "logged in", newAuthData(result)))
}

// Me godoc
// @Summary Current user
// @Description Returns the profile of the authenticated user.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=UserData}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "", UserData{User: user.Public()}))
}

func newAuthData(result usecase.AuthResult) AuthData {
	return AuthData{
		User:             result.User.Public(),
		Token:            result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		ExpiresAt:        result.Tokens.AccessExpiresAt,
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt,
	}
}

// bindJSON decodes the body into dst. An empty body leaves dst zeroed so the flow reports missing fields.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	return true
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	for _, mw := range middlewares {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return append(out, handler)
}

func pathOrBody(c *gin.Context, param, body string) string {
	if v := strings.TrimSpace(c.Param(param)); v != "" {
		return v
	}
	return strings.TrimSpace(body)
}
