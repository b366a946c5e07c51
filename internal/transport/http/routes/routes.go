package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/transport/http/handlers"
	"github.com/orsocook/orso-auth/internal/transport/http/middleware"
	"github.com/orsocook/orso-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Sessions *usecase.SessionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Tokens      middleware.AccessTokenVerifier
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Services.Auth != nil && deps.Services.Sessions != nil && deps.Tokens != nil {
		exposeErrors := !deps.Config.App.IsProduction() && deps.Config.Auth.ExposeDevelopmentErrors
		requireAuth := middleware.RequireAuth(deps.Tokens)

		authGroup := r.Group("/api/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, handlers.WithExposedErrors(exposeErrors))
		authHandler.RegisterRoutes(authGroup, requireAuth, handlers.Limits{
			Register: buildLimits(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
			Login:    buildLimits(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
			Recovery: buildLimits(deps, "auth_recovery_ip", deps.Config.RateLimit.PasswordResetMaxAttempts),
		})

		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions, exposeErrors)
		sessionHandler.RegisterRoutes(authGroup, requireAuth,
			buildLimits(deps, "auth_refresh_ip", deps.Config.RateLimit.RefreshMaxAttempts))
	}

	handlers.RegisterSwagger(r, deps.Config.App)

	return r
}

func buildLimits(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
