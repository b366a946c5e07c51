package transportgrpc

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/infra/security"
	grpcinterceptors "github.com/orsocook/orso-auth/internal/transport/grpc/interceptors"
	"github.com/orsocook/orso-auth/internal/usecase"
)

// ServiceName is the fully qualified name of the introspection service.
const ServiceName = "orso.auth.v1.Introspection"

const (
	MethodValidateAccessToken = "/" + ServiceName + "/ValidateAccessToken"
	MethodCurrentUser         = "/" + ServiceName + "/CurrentUser"
)

// ValidateTokenRequest asks whether an access token is currently valid.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse carries the verified identity, or the reason the token was refused.
type ValidateTokenResponse struct {
	Valid      bool   `json:"valid"`
	UserID     string `json:"userId,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	IsVerified bool   `json:"isVerified,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CurrentUserRequest is empty; the caller is identified by the bearer token in metadata.
type CurrentUserRequest struct{}

// CurrentUserResponse wraps the caller's public profile.
type CurrentUserResponse struct {
	User domain.PublicUser `json:"user"`
}

// IntrospectionServer is the server API of the introspection service.
type IntrospectionServer interface {
	ValidateAccessToken(ctx context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error)
	CurrentUser(ctx context.Context, req *CurrentUserRequest) (*CurrentUserResponse, error)
}

// UserLookup loads the account behind a verified principal.
type UserLookup interface {
	CurrentUser(ctx context.Context, userID string) (domain.User, error)
}

// IntrospectionService lets other OrsoCook backends check access tokens without sharing the signing secret.
type IntrospectionService struct {
	tokens grpcinterceptors.TokenVerifier
	users  UserLookup
	logger *zap.Logger
}

// NewIntrospectionService constructs the service.
func NewIntrospectionService(tokens grpcinterceptors.TokenVerifier, users UserLookup, logger *zap.Logger) *IntrospectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntrospectionService{tokens: tokens, users: users, logger: logger}
}

// ValidateAccessToken never fails the RPC for a bad token; it reports Valid=false instead.
func (s *IntrospectionService) ValidateAccessToken(_ context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error) {
	if req == nil || strings.TrimSpace(req.Token) == "" {
		return &ValidateTokenResponse{Error: "token is required"}, nil
	}

	claims, err := s.tokens.VerifyAccessToken(strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return &ValidateTokenResponse{Error: "access token expired"}, nil
		}
		return &ValidateTokenResponse{Error: "access token invalid"}, nil
	}

	return &ValidateTokenResponse{
		Valid:      true,
		UserID:     claims.UserID,
		Username:   claims.Username,
		Email:      claims.Email,
		IsVerified: claims.IsVerified,
		ExpiresAt:  claims.ExpiresAt.Unix(),
	}, nil
}

// CurrentUser returns the profile of the authenticated caller.
func (s *IntrospectionService) CurrentUser(ctx context.Context, _ *CurrentUserRequest) (*CurrentUserResponse, error) {
	principal, ok := grpcinterceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	user, err := s.users.CurrentUser(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, usecase.ErrUserNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		s.logger.Error("failed to load current user", zap.String("user_id", principal.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to load user")
	}

	return &CurrentUserResponse{User: user.Public()}, nil
}

// RegisterIntrospectionServer attaches srv to the registrar.
func RegisterIntrospectionServer(r grpc.ServiceRegistrar, srv IntrospectionServer) {
	r.RegisterService(&introspectionServiceDesc, srv)
}

var introspectionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntrospectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateAccessToken", Handler: validateAccessTokenHandler},
		{MethodName: "CurrentUser", Handler: currentUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orso/auth/v1/introspection",
}

func validateAccessTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntrospectionServer).ValidateAccessToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodValidateAccessToken}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntrospectionServer).ValidateAccessToken(ctx, req.(*ValidateTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func currentUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CurrentUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntrospectionServer).CurrentUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCurrentUser}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntrospectionServer).CurrentUser(ctx, req.(*CurrentUserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// IntrospectionClient calls the introspection service with the JSON codec.
type IntrospectionClient struct {
	cc grpc.ClientConnInterface
}

// NewIntrospectionClient wraps an established connection.
func NewIntrospectionClient(cc grpc.ClientConnInterface) *IntrospectionClient {
	return &IntrospectionClient{cc: cc}
}

func (c *IntrospectionClient) ValidateAccessToken(ctx context.Context, in *ValidateTokenRequest, opts ...grpc.CallOption) (*ValidateTokenResponse, error) {
	out := new(ValidateTokenResponse)
	if err := c.cc.Invoke(ctx, MethodValidateAccessToken, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IntrospectionClient) CurrentUser(ctx context.Context, in *CurrentUserRequest, opts ...grpc.CallOption) (*CurrentUserResponse, error) {
	out := new(CurrentUserResponse)
	if err := c.cc.Invoke(ctx, MethodCurrentUser, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
