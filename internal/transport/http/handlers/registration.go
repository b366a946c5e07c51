package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/usecase"
)

const resendAcknowledgement = "if the account exists and is not yet verified, a new verification email has been sent"

// Register godoc
// @Summary Register a new account
// @Description Creates an unverified account and mails a verification link. Also served at /register-with-verification.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration form"
// @Success 201 {object} Response{data=RegisterData}
// @Failure 400 {object} ErrorResponse "Missing fields, invalid email, weak password or account already taken"
// @Failure 429 {object} middleware.RateLimitedResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		h.badRequest(c, "invalid registration payload")
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, newSuccessResponse(c,
		"registration complete, check your email to activate the account",
		RegisterData{User: result.User.Public(), RequiresVerification: true},
	))
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Description Consumes the verification token and signs the user in.
// @Tags Registration
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} Response{data=AuthData}
// @Failure 400 {object} ErrorResponse "Invalid or expired token"
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/verify-email/{token} [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	result, err := h.auth.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err, "email verification failed")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, "account verified", newAuthData(result)))
}

// ResendVerification godoc
// @Summary Resend the verification email
// @Description Issues a fresh verification token. Unknown emails get the same acknowledgement.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse "Missing email or account already verified"
// @Failure 429 {object} middleware.RateLimitedResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		h.badRequest(c, "invalid payload")
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err, "failed to resend verification email")
		return
	}

	c.JSON(http.StatusOK, newSuccessResponse(c, resendAcknowledgement, nil))
}
