package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting of the server and CLI.
type Config struct {
	Port        string
	Environment string

	DBDriver    string // "postgres" or "sqlite"
	SQLitePath  string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret   string
	APIKeys     []string
	CORSOrigins []string

	StorageBackend string // "s3" or "local"
	AWSRegion      string
	AWSBucket      string
	CDNURL         string
	MediaRoot      string
	MediaURL       string

	ElasticsearchURL string
	OTLPEndpoint     string

	ImpressionFlushSchedule string
	RateLimitPerMinute      int
	CacheTTL                time.Duration

	LogLevel string
	LogFile  string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	// .env is optional; the environment wins either way
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8000"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		DBDriver:    getEnvOrDefault("DB_DRIVER", "postgres"),
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "blog.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBUser:      getEnvOrDefault("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnvOrDefault("DB_NAME", "blog"),
		DBSSLMode:   getEnvOrDefault("DB_SSLMODE", "disable"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		APIKeys:     splitList(os.Getenv("VALID_API_KEYS")),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "*")),

		StorageBackend: getEnvOrDefault("STORAGE_BACKEND", "local"),
		AWSRegion:      getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSBucket:      os.Getenv("AWS_BUCKET"),
		CDNURL:         os.Getenv("CDN_URL"),
		MediaRoot:      getEnvOrDefault("MEDIA_ROOT", "media"),
		MediaURL:       getEnvOrDefault("MEDIA_URL", "/media"),

		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		ImpressionFlushSchedule: getEnvOrDefault("IMPRESSION_FLUSH_SCHEDULE", "@every 1m"),
		RateLimitPerMinute:      getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CacheTTL:                5 * time.Minute,

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns DATABASE_URL or a DSN assembled from the DB_* variables.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
	if c.DBPassword != "" {
		dsn += " password=" + c.DBPassword
	}
	return dsn
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.StorageBackend != "s3" && c.StorageBackend != "local" {
		return fmt.Errorf("STORAGE_BACKEND must be s3 or local, got %q", c.StorageBackend)
	}
	if c.StorageBackend == "s3" && c.AWSBucket == "" {
		return fmt.Errorf("AWS_BUCKET is required when STORAGE_BACKEND=s3")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
