package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orsocook/orso-auth/internal/infra/telemetry"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// UserIDKey is the context key for authenticated user ID
	UserIDKey = "user_id"
	// PrincipalKey is the context key for the authenticated domain.Principal
	PrincipalKey = "principal"

	requestContextKey   = "request_context"
	requestIDContextKey = "request_id"
)

var tracer = telemetry.Tracer("github.com/orsocook/orso-auth/internal/transport/http")

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext opens a server span for the request and exposes its trace id.
// A caller-supplied X-Trace-ID wins; without a recording tracer a random id is used.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+routeOf(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", routeOf(c)),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			if sc := span.SpanContext(); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
