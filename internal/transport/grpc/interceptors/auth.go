package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/infra/security"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

var (
	errMissingToken  = errors.New("authorization token required")
	errMalformedAuth = errors.New("invalid authorization header")
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (domain.AccessClaims, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor validates incoming requests using access tokens.
type AuthInterceptor struct {
	verifier TokenVerifier
	logger   *zap.Logger
	allow    map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(verifier TokenVerifier, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{verifier: verifier, logger: logger, allow: allow}
}

// UnaryServerInterceptor rejects calls to protected methods without a valid bearer token.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if ai == nil || ai.verifier == nil {
			return handler(ctx, req)
		}

		if _, ok := ai.allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		token, err := tokenFromMetadata(ctx)
		if err != nil {
			ai.logger.Warn("gRPC authentication failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		claims, err := ai.verifier.VerifyAccessToken(token)
		if err != nil {
			ai.logger.Warn("gRPC token validation failed", zap.String("method", info.FullMethod), zap.Error(err))
			if errors.Is(err, security.ErrTokenExpired) {
				return nil, status.Error(codes.Unauthenticated, "access token expired")
			}
			return nil, status.Error(codes.Unauthenticated, "invalid access token")
		}

		return handler(WithPrincipal(ctx, claims.Principal()), req)
	}
}

type principalContextKey struct{}

// WithPrincipal returns a derived context carrying the caller's identity.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	if principal.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the caller set by the auth interceptor.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	if ctx == nil {
		return domain.Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return principal, ok && principal.ID != ""
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errMissingToken
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errMissingToken
	}

	value := strings.TrimSpace(values[0])
	if !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errMalformedAuth
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
