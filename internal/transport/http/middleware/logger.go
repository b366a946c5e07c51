package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/orsocook/orso-auth/internal/infra/logger"
)

// Logger emits access logs for every HTTP request with correlation identifiers and masked PII.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("trace_id", GetTraceID(c)),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", routeOf(c)),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}
		if userID, ok := GetAuthenticatedUserID(c); ok {
			fields = append(fields, zap.String("user_id", userID))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		reqLog := appLogger.Enrich(c.Request.Context(), log)
		switch {
		case len(c.Errors) > 0 || status >= 500:
			reqLog.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		case status >= 400:
			reqLog.Warn("request rejected", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	}
}
