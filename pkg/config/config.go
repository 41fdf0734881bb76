package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret      string
		ExpiryHours time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Upload policy for assistant documents
	Uploads struct {
		StagingDir      string
		MaxBytes        int64
		AllowedMimeList []string
	}

	// KnowledgeBase holds the fixed chunking policy for remote indexes.
	// These are deliberately not user-configurable per assistant.
	KnowledgeBase struct {
		MaxChunkSizeTokens int
		ChunkOverlapTokens int
		BatchPollInterval  time.Duration
		BatchPollTimeout   time.Duration
	}

	// Answering service (remote indexing + response generation)
	Answering struct {
		BaseURL      string
		APIKey       string
		DefaultModel string
		Timeout      time.Duration
	}

	// Redis settings for the session history cache
	Redis struct {
		Enabled        bool
		Addr           string
		Password       string
		DB             int
		HistoryTTL     time.Duration
		DirtyMarkerTTL time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "assistant-hub")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.ExpiryHours = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 12<<20)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Upload policy
		instance.Uploads.StagingDir = getEnvString("UPLOAD_STAGING_DIR", os.TempDir())
		instance.Uploads.MaxBytes = getEnvInt64("MAX_UPLOAD_BYTES", 10<<20) // 10 MiB
		instance.Uploads.AllowedMimeList = getEnvStringSlice("ALLOWED_MIME_TYPES", []string{"application/pdf"})

		// Knowledge base chunking policy (fixed constants)
		instance.KnowledgeBase.MaxChunkSizeTokens = getEnvInt("KB_MAX_CHUNK_SIZE_TOKENS", 800)
		instance.KnowledgeBase.ChunkOverlapTokens = getEnvInt("KB_CHUNK_OVERLAP_TOKENS", 400)
		instance.KnowledgeBase.BatchPollInterval = getEnvDuration("KB_BATCH_POLL_INTERVAL", 1*time.Second)
		instance.KnowledgeBase.BatchPollTimeout = getEnvDuration("KB_BATCH_POLL_TIMEOUT", 5*time.Minute)

		// Answering service
		instance.Answering.BaseURL = getEnvString("ANSWERING_BASE_URL", "https://api.openai.com/v1")
		instance.Answering.APIKey = getEnvString("ANSWERING_API_KEY", os.Getenv("OPENAI_API_KEY"))
		instance.Answering.DefaultModel = getEnvString("ANSWERING_DEFAULT_MODEL", "gpt-4o-mini")
		instance.Answering.Timeout = getEnvDuration("ANSWERING_TIMEOUT", 120*time.Second)

		// Redis settings
		instance.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
		instance.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)
		instance.Redis.HistoryTTL = getEnvDuration("REDIS_HISTORY_TTL", 60*time.Second)
		instance.Redis.DirtyMarkerTTL = getEnvDuration("REDIS_DIRTY_MARKER_TTL", 5*time.Second)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
