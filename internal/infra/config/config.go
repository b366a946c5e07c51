package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ORSO"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Sessions  SessionSettings   `mapstructure:"sessions"`
	Email     EmailSettings     `mapstructure:"email"`
	CORS      CORSSettings      `mapstructure:"cors"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// IsProduction reports whether internal error details must be hidden from clients.
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// PostgresSettings configures the primary store. When disabled the service keeps
// users and sessions in process memory, which is only accepted outside production.
type PostgresSettings struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	Schema            string        `mapstructure:"schema"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures the Redis connection backing rate limits.
type RedisSettings struct {
	Enabled         bool   `mapstructure:"enabled"`
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the auth event producer.
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// GRPCSettings configures the internal token introspection server.
type GRPCSettings struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuthSettings holds credential, token and lockout policy.
type AuthSettings struct {
	JWTIssuer               string        `mapstructure:"jwt_issuer"`
	AccessTokenSecret       string        `mapstructure:"access_token_secret"`
	RefreshTokenSecret      string        `mapstructure:"refresh_token_secret"`
	AccessTokenTTL          time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL         time.Duration `mapstructure:"refresh_token_ttl"`
	PasswordAlgorithm       string        `mapstructure:"password_algorithm"`
	BcryptCost              int           `mapstructure:"bcrypt_cost"`
	MaxLoginAttempts        int           `mapstructure:"max_login_attempts"`
	LockDuration            time.Duration `mapstructure:"lock_duration"`
	EmailTokenTTL           time.Duration `mapstructure:"email_token_ttl"`
	ResetTokenTTL           time.Duration `mapstructure:"reset_token_ttl"`
	MinPasswordLength       int           `mapstructure:"min_password_length"`
	MinPasswordClasses      int           `mapstructure:"min_password_classes"`
	MinPasswordStrength     int           `mapstructure:"min_password_strength"`
	ExposeDevelopmentErrors bool          `mapstructure:"expose_development_errors"`
}

// SessionSettings configures the expired-session sweeper.
type SessionSettings struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// EmailSettings configures transactional email delivery through Brevo.
type EmailSettings struct {
	BrevoAPIKey  string        `mapstructure:"brevo_api_key"`
	BrevoBaseURL string        `mapstructure:"brevo_base_url"`
	SenderEmail  string        `mapstructure:"sender_email"`
	SenderName   string        `mapstructure:"sender_name"`
	FrontendURL  string        `mapstructure:"frontend_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint.
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	RefreshMaxAttempts       int           `mapstructure:"refresh_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"postgres.enabled",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.schema",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"postgres.auto_migrate",
	"redis.enabled",
	"redis.url",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.rate_limit_prefix",
	"kafka.enabled",
	"kafka.brokers",
	"kafka.topic_prefix",
	"grpc.enabled",
	"grpc.port",
	"auth.jwt_issuer",
	"auth.access_token_secret",
	"auth.refresh_token_secret",
	"auth.access_token_ttl",
	"auth.refresh_token_ttl",
	"auth.password_algorithm",
	"auth.bcrypt_cost",
	"auth.max_login_attempts",
	"auth.lock_duration",
	"auth.email_token_ttl",
	"auth.reset_token_ttl",
	"auth.min_password_length",
	"auth.min_password_classes",
	"auth.min_password_strength",
	"auth.expose_development_errors",
	"sessions.sweep_interval",
	"email.brevo_api_key",
	"email.brevo_base_url",
	"email.sender_email",
	"email.sender_name",
	"email.frontend_url",
	"email.timeout",
	"cors.allowed_origins",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.refresh_max_attempts",
	"rate_limit.password_reset_max_attempts",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the auth flows cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.AccessTokenSecret) == "" {
		errs = append(errs, errors.New("auth.access_token_secret is required"))
	}
	if strings.TrimSpace(c.Auth.RefreshTokenSecret) == "" {
		errs = append(errs, errors.New("auth.refresh_token_secret is required"))
	}
	if c.Auth.AccessTokenSecret != "" && c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		errs = append(errs, errors.New("auth.access_token_secret and auth.refresh_token_secret must differ"))
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		errs = append(errs, errors.New("auth.max_login_attempts must be positive"))
	}
	if c.Auth.LockDuration <= 0 {
		errs = append(errs, errors.New("auth.lock_duration must be positive"))
	}
	if c.Auth.EmailTokenTTL <= 0 || c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.email_token_ttl and auth.reset_token_ttl must be positive"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("auth.refresh_token_ttl must exceed a positive auth.access_token_ttl"))
	}

	switch c.Auth.PasswordAlgorithm {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("auth.password_algorithm %q is not supported", c.Auth.PasswordAlgorithm))
	}
	if c.GRPC.Enabled && c.GRPC.Port <= 0 {
		errs = append(errs, errors.New("grpc.port must be positive when grpc is enabled"))
	}

	if !c.Postgres.Enabled && c.App.IsProduction() {
		errs = append(errs, errors.New("postgres.enabled must be true in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orsocook-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.enabled", true)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "orso")
	v.SetDefault("postgres.password", "orso_password")
	v.SetDefault("postgres.database", "orsocook")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.schema", "auth")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "orso:ratelimit")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "orso")

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("auth.jwt_issuer", "orsocook")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.password_algorithm", "bcrypt")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lock_duration", "15m")
	v.SetDefault("auth.email_token_ttl", "24h")
	v.SetDefault("auth.reset_token_ttl", "60m")
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.min_password_classes", 0)
	v.SetDefault("auth.min_password_strength", 0)
	v.SetDefault("auth.expose_development_errors", true)

	v.SetDefault("sessions.sweep_interval", "1h")

	v.SetDefault("email.brevo_base_url", "https://api.brevo.com/v3")
	v.SetDefault("email.sender_email", "noreply@orsocook.app")
	v.SetDefault("email.sender_name", "OrsoCook")
	v.SetDefault("email.frontend_url", "http://localhost:5173")
	v.SetDefault("email.timeout", "10s")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "orsocook-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.refresh_max_attempts", 30)
	v.SetDefault("rate_limit.password_reset_max_attempts", 5)
}

// bindEnvs accepts both ORSO_APP_PORT and APP_PORT style variables.
func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
