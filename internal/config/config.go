package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Notification NotificationConfig
	Offline      OfflineConfig
	Photos       PhotoStoreConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters. BootstrapAdminLogin
// and BootstrapAdminPassword seed the first admin account on startup
// when set; leave them empty once real accounts exist.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	BcryptCost             int
	BootstrapAdminLogin    string
	BootstrapAdminPassword string
}

// SLAConfig holds the age-banding thresholds in calendar days. They
// are policy constants, not structural invariants, so they stay
// configurable.
type SLAConfig struct {
	WarningDays  int
	CriticalDays int
}

// NotificationConfig holds webhook delivery settings.
type NotificationConfig struct {
	WebhookURL     string
	TimeoutSeconds int
}

// OfflineConfig configures the durable replay queue.
type OfflineConfig struct {
	KeyPrefix         string
	DrainIntervalSecs int
	DrainBatchLimit   int
	SubmitTimeoutSecs int
}

// PhotoStoreConfig configures the evidence photo adapter.
type PhotoStoreConfig struct {
	BaseDir       string
	PublicBaseURL string
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

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "replacement-protocol-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminLogin:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_LOGIN"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		SLA: SLAConfig{
			WarningDays:  getEnvAsInt("SLA_WARNING_DAYS", 7),
			CriticalDays: getEnvAsInt("SLA_CRITICAL_DAYS", 15),
		},
		Notification: NotificationConfig{
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		},
		Offline: OfflineConfig{
			KeyPrefix:         getEnv("OFFLINE_QUEUE_PREFIX", "protocol:offline"),
			DrainIntervalSecs: getEnvAsInt("OFFLINE_DRAIN_INTERVAL_SECONDS", 30),
			DrainBatchLimit:   getEnvAsInt("OFFLINE_DRAIN_BATCH_LIMIT", 100),
			SubmitTimeoutSecs: getEnvAsInt("OFFLINE_SUBMIT_TIMEOUT_SECONDS", 15),
		},
		Photos: PhotoStoreConfig{
			BaseDir:       getEnv("PHOTO_BASE_DIR", "evidence"),
			PublicBaseURL: getEnv("PHOTO_PUBLIC_BASE_URL", "/evidence"),
		},
	}

	return cfg, nil
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

// DrainInterval returns the pause between offline drain attempts.
func (o OfflineConfig) DrainInterval() time.Duration {
	if o.DrainIntervalSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.DrainIntervalSecs) * time.Second
}

// SubmitTimeout bounds a single replay submission.
func (o OfflineConfig) SubmitTimeout() time.Duration {
	if o.SubmitTimeoutSecs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(o.SubmitTimeoutSecs) * time.Second
}

// Timeout bounds a single webhook delivery.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
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
