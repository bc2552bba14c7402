package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverBolt     = "bolt"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Catalog      CatalogConfig
	TicketNumber TicketNumberConfig
	Client       ClientConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the ticket store backend.
type StoreConfig struct {
	Driver   string
	BoltPath string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values and cache lifetimes.
type RedisConfig struct {
	Addr                  string
	Password              string
	DB                    int
	TrackingCacheTTLSec   int
	IdempotencyKeyTTLSec  int
	IdempotencyPendingSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines staff authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	StaffFile             string
}

// CatalogConfig points at an optional catalog override file.
type CatalogConfig struct {
	Path string
}

// TicketNumberConfig bounds ticket number regeneration on collision.
type TicketNumberConfig struct {
	MaxAttempts int
}

// ClientConfig is used by supportctl.
type ClientConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
	CatalogPath    string
	LogLevel       string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	dsn := os.Getenv("POSTGRES_DSN")
	defaultDriver := StoreDriverBolt
	if dsn != "" {
		defaultDriver = StoreDriverPostgres
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "display-support"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", defaultDriver)),
			BoltPath: getEnv("BOLT_PATH", "tickets.db"),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:                  os.Getenv("REDIS_ADDR"),
			Password:              os.Getenv("REDIS_PASSWORD"),
			DB:                    redisDB,
			TrackingCacheTTLSec:   getEnvAsInt("TRACKING_CACHE_TTL_SECONDS", 60),
			IdempotencyKeyTTLSec:  getEnvAsInt("IDEMPOTENCY_KEY_TTL_SECONDS", 86400),
			IdempotencyPendingSec: getEnvAsInt("IDEMPOTENCY_PENDING_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			StaffFile:             getEnv("AUTH_STAFF_FILE", "staff.yaml"),
		},
		Catalog: CatalogConfig{
			Path: os.Getenv("CATALOG_PATH"),
		},
		TicketNumber: TicketNumberConfig{
			MaxAttempts: getEnvAsInt("TICKET_NUMBER_MAX_ATTEMPTS", 5),
		},
		Client: loadClient(),
	}

	if cfg.Store.Driver != StoreDriverPostgres && cfg.Store.Driver != StoreDriverBolt {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == StoreDriverPostgres && dsn == "" {
		return nil, fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
	}
	if cfg.TicketNumber.MaxAttempts <= 0 {
		cfg.TicketNumber.MaxAttempts = 1
	}

	return cfg, nil
}

// LoadClient reads only the supportctl settings.
func LoadClient() ClientConfig {
	_ = godotenv.Load()
	return loadClient()
}

func loadClient() ClientConfig {
	return ClientConfig{
		BaseURL:        getEnv("SUPPORT_API_URL", "http://127.0.0.1:8080"),
		Token:          os.Getenv("SUPPORT_API_TOKEN"),
		TimeoutSeconds: getEnvAsInt("SUPPORT_API_TIMEOUT_SECONDS", 10),
		CatalogPath:    os.Getenv("CATALOG_PATH"),
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TrackingCacheTTL returns how long tracking projections stay cached.
func (r RedisConfig) TrackingCacheTTL() time.Duration {
	return time.Duration(r.TrackingCacheTTLSec) * time.Second
}

// IdempotencyPendingTTL returns how long an unfinished submission holds its key.
func (r RedisConfig) IdempotencyPendingTTL() time.Duration {
	return time.Duration(r.IdempotencyPendingSec) * time.Second
}

// IdempotencyKeyTTL returns how long a submission key is remembered.
func (r RedisConfig) IdempotencyKeyTTL() time.Duration {
	return time.Duration(r.IdempotencyKeyTTLSec) * time.Second
}

// Timeout returns the client request timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
