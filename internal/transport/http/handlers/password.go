package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/usecase"
)

const forgotAcknowledgement = "if the email is registered, you will receive a link to reset your password"

// ForgotPassword godoc
// @Summary Request a password reset
// @Description Mails a reset link when the email is registered. The response never reveals whether it is.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitedResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		h.badRequest(c, "invalid payload")
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err, "failed to process the request")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, forgotAcknowledgement, nil))
}

// ResetPassword godoc
// @Summary Reset the password
// @Description Consumes the reset token, stores the new password and clears any lockout.
// @Tags Password
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse "Missing fields, mismatch, weak password or invalid token"
// @Failure 429 {object} middleware.RateLimitedResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		h.badRequest(c, "invalid payload")
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Token:           pathOrBody(c, "token", req.Token),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondError(c, err, "password reset failed")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "password updated, you can now sign in", nil))
}
