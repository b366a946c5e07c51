package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orsocook/orso-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code.
type ErrorCase struct {
	Err    error
	Status int
}

var flowErrorCases = []ErrorCase{
	{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
	{Err: usecase.ErrConflict, Status: http.StatusBadRequest},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Err: usecase.ErrEmailNotVerified, Status: http.StatusForbidden},
	{Err: usecase.ErrAccountLocked, Status: http.StatusLocked},
	{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest},
	{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized},
	{Err: usecase.ErrInvalidOrExpiredSession, Status: http.StatusUnauthorized},
	{Err: usecase.ErrUserNotFound, Status: http.StatusUnauthorized},
	{Err: usecase.ErrAlreadyVerified, Status: http.StatusBadRequest},
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound},
}

// errorResponder renders flow errors. Internal errors become 500 with a generic message,
// plus the error text when exposeErrors is set.
type errorResponder struct {
	exposeErrors bool
}

// StatusFor resolves the HTTP status of err, falling back to 500.
func StatusFor(err error) int {
	for _, cs := range flowErrorCases {
		if errors.Is(err, cs.Err) {
			return cs.Status
		}
	}
	return http.StatusInternalServerError
}

func (r errorResponder) respondError(c *gin.Context, err error, fallbackMessage string) {
	fe, ok := usecase.AsFlowError(err)
	if !ok {
		_ = c.Error(err)
		resp := NewErrorResponse(c, fallbackMessage)
		if r.exposeErrors {
			resp.Debug = err.Error()
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	resp := NewErrorResponse(c, fe.Error())
	switch {
	case errors.Is(fe, usecase.ErrAccountLocked):
		resp.Data = LockedData{Locked: true, LockTime: fe.LockMinutes}
	case errors.Is(fe, usecase.ErrInvalidCredentials) && fe.AttemptsLeft != nil:
		resp.Data = AttemptsLeftData{AttemptsLeft: *fe.AttemptsLeft}
	case errors.Is(fe, usecase.ErrEmailNotVerified):
		resp.Data = VerificationRequiredData{RequiresVerification: true, Email: fe.Email}
	}
	c.JSON(StatusFor(fe), resp)
}

func (r errorResponder) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, message))
}
