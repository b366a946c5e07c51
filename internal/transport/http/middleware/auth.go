package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

// ErrorResponse mirrors the handlers envelope for failures raised before a handler runs.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: message,
		TraceID: GetTraceID(c),
	}
}

// AccessTokenVerifier validates access tokens.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (domain.AccessClaims, error)
}

// RequireAuth validates the bearer token and stores the caller's principal on the context.
func RequireAuth(verifier AccessTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "missing authentication token"))
			return
		}

		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "invalid or expired token"))
			return
		}

		principal := claims.Principal()
		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, principal.ID)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = principal.ID
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetPrincipal retrieves the authenticated caller set by RequireAuth.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	raw, exists := c.Get(PrincipalKey)
	if !exists {
		return domain.Principal{}, false
	}
	principal, ok := raw.(domain.Principal)
	if !ok || principal.ID == "" {
		return domain.Principal{}, false
	}
	return principal, true
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	principal, ok := GetPrincipal(c)
	if !ok {
		return "", false
	}
	return principal.ID, true
}
