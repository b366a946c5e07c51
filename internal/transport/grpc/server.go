package transportgrpc

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/orsocook/orso-auth/internal/transport/grpc/interceptors"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Tokens         grpcinterceptors.TokenVerifier
	Users          UserLookup
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	Logger         *zap.Logger
}

// NewServer wires the introspection service. Token validation is public; everything else needs a bearer token.
func NewServer(deps ServerDependencies) (*grpc.Server, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user lookup is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Tokens, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: []string{MethodValidateAccessToken},
	})

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			deps.Metrics.UnaryServerInterceptor(),
			authInterceptor.UnaryServerInterceptor(),
		),
	}
	if deps.TracerProvider != nil {
		opts = append(opts, grpcinterceptors.ServerTracing(grpcinterceptors.TracingOptions{
			TracerProvider: deps.TracerProvider,
		}))
	}

	server := grpc.NewServer(opts...)
	RegisterIntrospectionServer(server, NewIntrospectionService(deps.Tokens, deps.Users, logger))

	// Register reflection service for tools like grpcurl.
	reflection.Register(server)

	return server, nil
}
