package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/transport/http/middleware"
	"github.com/orsocook/orso-auth/internal/usecase"
)

// SessionHandler exposes refresh, logout and session management endpoints.
type SessionHandler struct {
	errorResponder
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService, exposeErrors bool) *SessionHandler {
	return &SessionHandler{
		errorResponder: errorResponder{exposeErrors: exposeErrors},
		sessions:       sessions,
	}
}

// RegisterRoutes binds the session routes. Refresh and logout are public; the rest require auth.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, refreshLimits []gin.HandlerFunc) {
	r.POST("/refresh", chain(refreshLimits, h.Refresh)...)
	r.POST("/logout", h.Logout)

	r.GET("/sessions", requireAuth, h.ListSessions)
	r.DELETE("/sessions/:sessionId", requireAuth, h.DeleteSession)
	r.POST("/logout-all", requireAuth, h.LogoutAll)
}

// Refresh godoc
// @Summary Refresh the access token
// @Description Issues a new access token for a refresh token bound to a live session. The refresh token is not rotated.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} Response{data=RefreshData}
// @Failure 400 {object} ErrorResponse "Missing refresh token"
// @Failure 401 {object} ErrorResponse "Invalid token, expired session or unknown user"
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/refresh [post]
func (h *SessionHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		h.badRequest(c, "invalid payload")
		return
	}

	result, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err, "token refresh failed")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "token refreshed", RefreshData{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.AccessExpiresAt,
		User:        result.User.Public(),
	}))
}

// Logout godoc
// @Summary Sign out
// @Description Deletes the session bound to the refresh token. Unknown or missing tokens still succeed.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token"
// @Success 200 {object} Response
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	_ = bindJSON(c, &req)

	if err := h.sessions.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.respondError(c, err, "logout failed")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "logged out", nil))
}

// ListSessions godoc
// @Summary List sessions
// @Description Returns the caller's live sessions, newest first.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=SessionsData}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "failed to load sessions")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, newSessionSummary(s))
	}
	c.JSON(http.StatusOK, newSuccessResponse(c, "", SessionsData{Sessions: summaries}))
}

// DeleteSession godoc
// @Summary Delete a session
// @Description Deletes one of the caller's sessions by id, or by refresh token when supplied in the body.
// @Description Sessions that do not exist or belong to someone else are left untouched.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session id"
// @Param request body RefreshRequest false "Refresh token of the session"
// @Success 200 {object} Response
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/sessions/{sessionId} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req RefreshRequest
	_ = bindJSON(c, &req)

	if err := h.sessions.DeleteSession(c.Request.Context(), userID, c.Param("sessionId"), req.RefreshToken); err != nil {
		h.respondError(c, err, "failed to delete session")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "session deleted", nil))
}

// LogoutAll godoc
// @Summary Sign out everywhere
// @Description Deletes every session of the caller.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=LogoutAllData}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *SessionHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	revoked, err := h.sessions.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "global logout failed")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "logged out from all devices", LogoutAllData{Revoked: revoked}))
}
