package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orsocook/orso-auth/internal/infra/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID reuses a caller supplied X-Request-ID when it is reasonably sized and
// otherwise mints one, then echoes it back and stores it for the loggers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Header(requestIDHeader, id)
		c.Set(requestIDContextKey, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}
