package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET,POST,DELETE,OPTIONS"
	corsAllowHeaders  = "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Trace-ID"
	corsExposeHeaders = "X-Request-ID,X-Trace-ID,Retry-After"
	corsMaxAge        = "86400"
)

type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(allowed []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = normalizeOrigin(origin)
		switch origin {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin and whether credentials
// may be sent. Listed origins are echoed with credentials; the wildcard never carries them.
func (p corsPolicy) allowOrigin(origin string) (string, bool) {
	if origin != "" {
		if _, ok := p.origins[normalizeOrigin(origin)]; ok {
			return origin, true
		}
	}
	if p.any {
		return "*", false
	}
	return "", false
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// CORS answers preflights and decorates responses for the configured frontend origins.
// Preflights from origins that are not allowed are refused with 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed, credentials := policy.allowOrigin(origin)

		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
			if credentials {
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Header("Vary", "Origin")
			}
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if allowed == "" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Max-Age", corsMaxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
