package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// DefaultSecretKey is the development signing key. It is refused in production.
const DefaultSecretKey = "your-secret-key-change-in-production"

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// API routes are mounted below this prefix
	APIPrefix   string   `env:"API_V1_PREFIX" envDefault:"/api/v1"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	// Maximum request body, in echo BodyLimit notation (e.g. 4M)
	MaxBodySize string `env:"MAX_BODY_SIZE" envDefault:"4M"`

	// Database settings
	Database DatabaseConfig

	// JWT and password hashing
	Auth AuthConfig

	// Anonymous access policy
	Access AccessConfig

	// Pagination and submission size caps
	Limits LimitsConfig

	// Submission rate limiting
	RateLimit RateLimitConfig

	// Stats aggregation
	Stats StatsConfig

	// OpenTelemetry
	Otel OtelConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"benchcom"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:"benchcom"`
	Database     string        `env:"POSTGRES_DB" envDefault:"benchcom"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"10s"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AuthConfig holds token signing and password hashing settings
type AuthConfig struct {
	SecretKey                string `env:"SECRET_KEY" envDefault:"your-secret-key-change-in-production"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	BcryptCost               int    `env:"BCRYPT_COST" envDefault:"10"`
}

// TokenTTL is the lifetime of an issued access token.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// AccessConfig controls what anonymous callers may do.
type AccessConfig struct {
	AllowAnonymousSubmissions bool `env:"ALLOW_ANONYMOUS_SUBMISSIONS" envDefault:"true"`
	AllowAnonymousBrowsing    bool `env:"ALLOW_ANONYMOUS_BROWSING" envDefault:"true"`
	// Lets anonymous callers read sensitive fields. Never grants delete.
	AnonymousAdmin        bool `env:"ANONYMOUS_ADMIN" envDefault:"false"`
	StatsRefreshAdminOnly bool `env:"STATS_REFRESH_ADMIN_ONLY" envDefault:"false"`
}

// LimitsConfig caps pagination and submission payloads.
type LimitsConfig struct {
	PageDefaultLimit        int `env:"PAGE_DEFAULT_LIMIT" envDefault:"50"`
	PageMaxLimit            int `env:"PAGE_MAX_LIMIT" envDefault:"500"`
	MaxResultsPerSubmission int `env:"MAX_RESULTS_PER_SUBMISSION" envDefault:"500"`
	MaxConsoleOutputBytes   int `env:"MAX_CONSOLE_OUTPUT_BYTES" envDefault:"1048576"`
	MaxRawOutputBytes       int `env:"MAX_RAW_OUTPUT_BYTES" envDefault:"65536"`
	MaxJSONDocumentBytes    int `env:"MAX_JSON_DOCUMENT_BYTES" envDefault:"65536"`
	MaxNotesLength          int `env:"MAX_NOTES_LENGTH" envDefault:"10000"`
	MaxLabels               int `env:"MAX_LABELS" envDefault:"32"`
	MaxLabelLength          int `env:"MAX_LABEL_LENGTH" envDefault:"64"`
}

// RateLimitConfig configures the per-IP submission limiter. A rate of 0 disables it.
type RateLimitConfig struct {
	SubmitPerMinute int `env:"SUBMIT_RATE_PER_MINUTE" envDefault:"30"`
	SubmitBurst     int `env:"SUBMIT_RATE_BURST" envDefault:"10"`
}

// Enabled returns true when submissions are rate limited.
func (r RateLimitConfig) Enabled() bool {
	return r.SubmitPerMinute > 0
}

// StatsConfig configures the aggregation refresh.
type StatsConfig struct {
	RefreshTimeout time.Duration `env:"STATS_REFRESH_TIMEOUT" envDefault:"30s"`

	// Cron spec for the periodic full rebuild. Empty disables it.
	RebuildSchedule string        `env:"STATS_REBUILD_SCHEDULE" envDefault:"@every 1h"`
	RebuildTimeout  time.Duration `env:"STATS_REBUILD_TIMEOUT" envDefault:"10m"`
}

// NewConfig creates a new Config from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("allow_anonymous_submissions", cfg.Access.AllowAnonymousSubmissions),
		slog.Bool("allow_anonymous_browsing", cfg.Access.AllowAnonymousBrowsing),
		slog.Bool("anonymous_admin", cfg.Access.AnonymousAdmin),
	)

	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() && c.Auth.SecretKey == DefaultSecretKey {
		errs = append(errs, errors.New("SECRET_KEY must be set in production"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY must not be empty"))
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Limits.PageMaxLimit <= 0 || c.Limits.PageDefaultLimit <= 0 {
		errs = append(errs, errors.New("page limits must be positive"))
	}
	if c.Limits.PageDefaultLimit > c.Limits.PageMaxLimit {
		errs = append(errs, errors.New("PAGE_DEFAULT_LIMIT must not exceed PAGE_MAX_LIMIT"))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, errors.New("DB_QUERY_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
