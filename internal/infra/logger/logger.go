package logger

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "orso-auth"

type requestIDKey struct{}

// New builds the process logger: JSON with sampling in production, colored console output elsewhere.
// Every entry carries the service name and environment.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]any{"service": serviceName, "env": env}

	return cfg.Build()
}

// WithRequestID stores the correlation id picked up by Enrich.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Enrich adds request id and trace id from ctx to base.
func Enrich(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 2)
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// MaskEmail keeps up to three leading characters of the local part and the whole domain.
// john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + domain
}

// MaskIP keeps the network half of an address: two octets for IPv4, four groups for IPv6.
func MaskIP(ip string) string {
	switch {
	case ip == "":
		return ""
	case strings.Count(ip, ".") == 3:
		parts := strings.SplitN(ip, ".", 3)
		return parts[0] + "." + parts[1] + ".*.*"
	case strings.Count(ip, ":") >= 3:
		parts := strings.SplitN(ip, ":", 5)
		return strings.Join(parts[:4], ":") + ":*:*:*:*"
	default:
		return "***"
	}
}

// MaskIPPtr masks an optional IP address.
func MaskIPPtr(ip *string) string {
	if ip == nil {
		return ""
	}
	return MaskIP(*ip)
}

// MaskString hides all but the two outer characters at each end; short values are hidden entirely.
func MaskString(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
