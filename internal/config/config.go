package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"promptdeck/internal/models"
)

// Config holds configuration for the service.
type Config struct {
	HTTPPort  string
	JWTSecret []byte
	Database  DatabaseConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Guard     GuardConfig
	Notify    NotifyConfig
	Archive   ArchiveConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	WorkspaceCacheSize int
	WorkspaceCacheTTL  time.Duration
	ToolCacheSize      int
	ToolCacheTTL       time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds AI provider settings
type ProviderConfig struct {
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	RequestTimeout time.Duration // hard bound on a single AI call
	DefaultModel   string        // used when a task has no tool
}

// GuardConfig holds run-guard settings
type GuardConfig struct {
	UpgradeCTAURL string
}

// NotifyConfig holds soft-warning notification settings
type NotifyConfig struct {
	WebhookURL string // empty means log-only notifications
}

// ArchiveConfig holds configuration for the S3 decision archive
type ArchiveConfig struct {
	Enabled       bool          // Whether to archive guard decisions
	BufferSize    int           // In-memory queue size
	FlushSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string        // S3 bucket name
	S3Region      string        // AWS region
	S3Prefix      string        // Prefix for S3 keys (e.g., "guard/")
	Instance      string        // Instance identifier for multi-pod deployments
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnvString("HTTP_PORT", "8080")
	jwtSecret := []byte(getEnvString("JWT_SECRET", "supersecretkey"))

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:  port,
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			WorkspaceCacheSize: getEnvInt("CACHE_WORKSPACE_SIZE", 1000),
			WorkspaceCacheTTL:  getEnvDuration("CACHE_WORKSPACE_TTL", 1*time.Minute),
			ToolCacheSize:      getEnvInt("CACHE_TOOL_SIZE", 500),
			ToolCacheTTL:       getEnvDuration("CACHE_TOOL_TTL", 15*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			OpenAIAPIKey:   getEnvString("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnvString("OPENAI_BASE_URL", ""),
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
			DefaultModel:   getEnvString("PROVIDER_DEFAULT_MODEL", "gpt-4o-mini"),
		},
		Guard: GuardConfig{
			UpgradeCTAURL: getEnvString("UPGRADE_CTA_URL", "/dashboard/billing"),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnvString("NOTIFY_WEBHOOK_URL", ""),
		},
		Archive: ArchiveConfig{
			Enabled:       getEnvString("ARCHIVE_ENABLED", "false") == "true",
			BufferSize:    getEnvInt("ARCHIVE_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("ARCHIVE_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("ARCHIVE_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("ARCHIVE_S3_BUCKET", ""),
			S3Region:      getEnvString("ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("ARCHIVE_S3_PREFIX", "guard/"),
			Instance:      getEnvString("POD_NAME", "api-0"),
		},
	}

	return cfg, nil
}

// PlanLimits returns the plan limit table with any environment overrides
// applied. Zero and negative overrides are ignored; "unlimited" cannot be
// granted via environment.
func (c *Config) PlanLimits() map[models.Plan]models.PlanLimits {
	limits := models.DefaultPlanLimits()

	for plan, envPrefix := range map[models.Plan]string{
		models.PlanFree:    "PLAN_FREE",
		models.PlanStarter: "PLAN_STARTER",
	} {
		pl := limits[plan]
		if v := getEnvInt64(envPrefix+"_REQUESTS_PER_MONTH", 0); v > 0 {
			pl.RequestsPerMonth = &v
		}
		if v := getEnvInt64(envPrefix+"_TOKENS_PER_MONTH", 0); v > 0 {
			pl.TokensPerMonth = &v
		}
		if v := getEnvFloat(envPrefix+"_COST_USD_PER_MONTH", 0); v > 0 {
			pl.CostUSDPerMonth = &v
		}
		limits[plan] = pl
	}

	return limits
}
