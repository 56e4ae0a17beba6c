package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	LogFormat   string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMetricsEnabled  bool

	AuthJWTSecret  string
	AuthTokenTTL   time.Duration
	CredentialsKey string

	AuthzPersistPolicies bool

	Bootstrap BootstrapConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// BootstrapConfig controls the default organization and administrator seed.
type BootstrapConfig struct {
	Enabled       bool
	AdminEmail    string
	AdminPassword string
}

// RateLimitConfig throttles login attempts per email through Redis.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LoginRate     float64
	LoginBurst    int
}

// SchedulerConfig drives the background maintenance jobs.
type SchedulerConfig struct {
	Enabled       bool
	Spec          string
	StaleRunAfter time.Duration
	StaleRunBatch int
	JobTimeout    time.Duration
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAuditConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "finsight"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getenv("LOG_FORMAT", "json")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "finsight"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBMetricsEnabled:  getenvBool("DB_METRICS_ENABLED", false),

		AuthJWTSecret:  strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthTokenTTL:   getenvDuration("AUTH_TOKEN_TTL", time.Hour),
		CredentialsKey: strings.TrimSpace(getenv("CREDENTIALS_KEY", "")),

		AuthzPersistPolicies: getenvBool("AUTHZ_PERSIST_POLICIES", false),

		Bootstrap: BootstrapConfig{
			Enabled:       getenvBool("BOOTSTRAP_ENABLED", true),
			AdminEmail:    strings.ToLower(getenv("BOOTSTRAP_ADMIN_EMAIL", "admin@example.com")),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     getenv("RATE_LIMIT_REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("RATE_LIMIT_REDIS_PASSWORD"),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			LoginRate:     getenvFloat("RATE_LIMIT_LOGIN_RATE", 0.1),
			LoginBurst:    getenvInt("RATE_LIMIT_LOGIN_BURST", 5),
		},

		Scheduler: SchedulerConfig{
			Enabled:       getenvBool("SCHEDULER_ENABLED", true),
			Spec:          getenv("SCHEDULER_SPEC", "@every 1m"),
			StaleRunAfter: getenvDuration("SCHEDULER_STALE_RUN_AFTER", 30*time.Minute),
			StaleRunBatch: getenvInt("SCHEDULER_STALE_RUN_BATCH", 100),
			JobTimeout:    getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
		},

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
