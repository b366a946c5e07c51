package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/infra/database"
	kafkainfra "github.com/orsocook/orso-auth/internal/infra/kafka"
	"github.com/orsocook/orso-auth/internal/infra/logger"
	"github.com/orsocook/orso-auth/internal/infra/mail"
	redisinfra "github.com/orsocook/orso-auth/internal/infra/redis"
	"github.com/orsocook/orso-auth/internal/infra/security"
	"github.com/orsocook/orso-auth/internal/infra/telemetry"
	"github.com/orsocook/orso-auth/internal/repository/memory"
	postgresrepo "github.com/orsocook/orso-auth/internal/repository/postgres"
	redisrepo "github.com/orsocook/orso-auth/internal/repository/redis"
	transportgrpc "github.com/orsocook/orso-auth/internal/transport/grpc"
	grpcinterceptors "github.com/orsocook/orso-auth/internal/transport/grpc/interceptors"
	"github.com/orsocook/orso-auth/internal/transport/http/middleware"
	"github.com/orsocook/orso-auth/internal/transport/http/routes"
	"github.com/orsocook/orso-auth/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns every long-lived resource of the auth service.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
	metrics  *telemetry.Metrics
	notifier *usecase.Notifier
	sessions *usecase.SessionService

	grpcServer *grpc.Server
	grpcAddr   string
}

type storage struct {
	users    port.UserRepository
	sessions port.SessionRepository
}

// New builds the application graph. Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	metrics, err := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.metrics = metrics

	store, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	rateLimiter, err := a.openRateLimiter(ctx, httpMetrics)
	if err != nil {
		return nil, err
	}

	events := a.openEventPublisher()

	mailer := mail.NewMailer(cfg.Email, cfg.Auth, cfg.App.Env, log)
	if !mailer.Configured() {
		log.Warn("brevo api key not configured, emails will only be logged")
	}

	hasher, err := newHasher(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Issuer:        cfg.Auth.JWTIssuer,
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:           cfg.Auth.MinPasswordLength,
		MaxBytes:            maxPasswordBytes(cfg.Auth),
		MinCharacterClasses: cfg.Auth.MinPasswordClasses,
		MinStrengthScore:    cfg.Auth.MinPasswordStrength,
	})

	a.notifier = usecase.NewNotifier(mailer, events, metrics, log)
	authService, err := usecase.NewAuthService(cfg.Auth, usecase.AuthDeps{
		Users:    store.users,
		Sessions: store.sessions,
		Hasher:   hasher,
		Policy:   policy,
		Issuer:   issuer,
		Tokens:   security.NewRandomTokenSource(security.DefaultTokenBytes),
		Guard:    usecase.NewAccountGuard(store.users, cfg.Auth.MaxLoginAttempts, cfg.Auth.LockDuration),
		Notifier: a.notifier,
		Metrics:  metrics,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	a.sessions = usecase.NewSessionService(store.sessions, store.users, issuer, a.notifier, metrics, log)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Services:    routes.ServiceSet{Auth: authService, Sessions: a.sessions},
		Tokens:      issuer,
		HTTPMetrics: httpMetrics,
		Gatherer:    prometheus.DefaultGatherer,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	if cfg.GRPC.Enabled {
		if err := a.buildGRPC(issuer, authService); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *Application) openStorage(ctx context.Context) (storage, error) {
	if !a.cfg.Postgres.Enabled {
		a.logger.Warn("postgres disabled, accounts and sessions are kept in memory")
		return storage{users: memory.NewUserRepository(), sessions: memory.NewSessionRepository()}, nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return storage{}, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	if a.cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pool, a.logger); err != nil {
			return storage{}, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	repos := postgresrepo.NewRepositories(pool)
	return storage{users: repos.Users, sessions: repos.Sessions}, nil
}

func (a *Application) openRateLimiter(ctx context.Context, metrics *middleware.HTTPMetrics) (*middleware.RateLimiter, error) {
	if !a.cfg.Redis.Enabled {
		a.logger.Info("redis disabled, rate limiting is off")
		return nil, nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client

	window := a.cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	store := redisrepo.NewRateLimitRepository(client.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: a.cfg.Redis.RateLimitPrefix,
		TTL:       window * 2,
	})
	return middleware.NewRateLimiter(store, a.logger).WithMetrics(metrics), nil
}

// openEventPublisher falls back to logging events when Kafka is off or unreachable.
func (a *Application) openEventPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer

	go func() {
		for range producer.Errors() {
			a.metrics.ObserveEventFailure("async")
		}
	}()

	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) buildGRPC(issuer *security.TokenIssuer, users transportgrpc.UserLookup) error {
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return fmt.Errorf("init grpc metrics: %w", err)
	}

	deps := transportgrpc.ServerDependencies{
		Tokens:  issuer,
		Users:   users,
		Metrics: grpcMetrics,
		Logger:  a.logger,
	}
	if a.tracer != nil {
		deps.TracerProvider = a.tracer.Provider()
	}

	srv, err := transportgrpc.NewServer(deps)
	if err != nil {
		return fmt.Errorf("init grpc server: %w", err)
	}
	a.grpcServer = srv
	a.grpcAddr = fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.GRPC.Port)
	return nil
}

// argon2id takes any input length; the cap only bounds hashing work.
const argon2MaxPasswordBytes = 256

func maxPasswordBytes(cfg config.AuthSettings) int {
	if cfg.PasswordAlgorithm == security.AlgoArgon2id {
		return argon2MaxPasswordBytes
	}
	return security.BcryptMaxPasswordBytes
}

func newHasher(cfg config.AuthSettings) (*security.PasswordHasher, error) {
	if cfg.PasswordAlgorithm == security.AlgoArgon2id {
		return security.NewPasswordHasher(security.WithArgon2(security.DefaultArgon2Config()))
	}
	return security.NewPasswordHasher(security.WithBcryptCost(cfg.BcryptCost))
}

// Run serves HTTP, and gRPC when enabled, until ctx is cancelled or a server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.sessions.RunSweeper(runCtx, a.cfg.Sessions.SweepInterval)

	errCh := make(chan error, 2)

	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			a.release(context.Background())
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server failed", zap.Error(runErr))
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	a.release(shutdownCtx)

	return runErr
}

// release waits for in-flight notifications, then closes the backends they depend on.
func (a *Application) release(ctx context.Context) {
	a.notifier.Wait()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
}
