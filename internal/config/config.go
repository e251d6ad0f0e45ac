package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode        string // Set via flag, not env
	LogDevelopment bool

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort           string
	ServiceApiPort    string
	CorsAllowedOrigin string

	// Shop
	ShopTimezone      string
	Location          *time.Location
	PaymentMaxRetries int

	// Reports
	ReportCacheTTL time.Duration
	HeartbeatTTL   time.Duration

	// Background tasks
	DailySummaryCron string
	PurgeCron        string
	DeletedRetention time.Duration
	SummaryEmailTo   string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	EmailLogFile    string // LOG_EMAILS: also append outgoing mail to this file
	MockServices    bool   // MOCK_SERVICES: keep outgoing mail in Redis for test retrieval

	// AWS S3
	AwsAccessKeyID       string
	AwsSecretAccessKey   string
	AwsRegion            string
	AwsS3Bucket          string
	DocumentMaxDimension int
	DocumentMaxSizeMB    int

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		seconds, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "shopops")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.ShopTimezone = getEnv("SHOP_TIMEZONE", "Asia/Kolkata")
	cfg.DailySummaryCron = getEnv("DAILY_SUMMARY_CRON", "30 21 * * *")
	cfg.PurgeCron = getEnv("PURGE_CRON", "0 3 * * *")
	cfg.SummaryEmailTo = getEnv("SUMMARY_EMAIL_TO", "")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@shopops.local")
	cfg.EmailLogFile = getEnv("LOG_EMAILS", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "ap-south-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")

	cfg.Location, err = time.LoadLocation(cfg.ShopTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SHOP_TIMEZONE: %w", err)
	}

	cfg.LogDevelopment, err = strconv.ParseBool(getEnv("LOG_DEVELOPMENT", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_DEVELOPMENT: %w", err)
	}

	cfg.MockServices, err = strconv.ParseBool(getEnv("MOCK_SERVICES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_SERVICES: %w", err)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "43200"); err != nil {
		return nil, err
	}
	if cfg.ReportCacheTTL, err = getSeconds("REPORT_CACHE_TTL_SECONDS", "30"); err != nil {
		return nil, err
	}
	if cfg.HeartbeatTTL, err = getSeconds("HEARTBEAT_TTL_SECONDS", "90"); err != nil {
		return nil, err
	}

	cfg.PaymentMaxRetries, err = strconv.Atoi(getEnv("PAYMENT_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_MAX_RETRIES: %w", err)
	}

	retentionDays, err := strconv.Atoi(getEnv("DELETED_RETENTION_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid DELETED_RETENTION_DAYS: %w", err)
	}
	if retentionDays < 1 {
		return nil, fmt.Errorf("invalid DELETED_RETENTION_DAYS: must be at least 1, got %d", retentionDays)
	}
	cfg.DeletedRetention = time.Duration(retentionDays) * 24 * time.Hour

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.DocumentMaxDimension, err = strconv.Atoi(getEnv("DOCUMENT_MAX_DIMENSION", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOCUMENT_MAX_DIMENSION: %w", err)
	}

	cfg.DocumentMaxSizeMB, err = strconv.Atoi(getEnv("DOCUMENT_MAX_SIZE_MB", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOCUMENT_MAX_SIZE_MB: %w", err)
	}

	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
