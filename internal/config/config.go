package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// IngestRate/IngestBurst shape the per-client token bucket on the
	// usage ingestion endpoint. A zero rate disables limiting.
	IngestRate  float64
	IngestBurst int

	BaseURL     string
	PayBaseURL  string
	ReceiptsDir string

	AdminEmail   string
	AdminKeyHash string
	CompanyName  string

	// InvoiceTime is the local HH:MM at which the daily invoicing run fires.
	InvoiceTime string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "meterbill"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "meterbill"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		SMTPHost:     getenv("SMTP_SERVER", "localhost"),
		SMTPPort:     getenvInt("SMTP_PORT", 465),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM_ADDRESS", "billing@nextlevelcode.dev"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		IngestRate:  getenvFloat("INGEST_RATE", 50),
		IngestBurst: getenvInt("INGEST_BURST", 100),

		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		PayBaseURL:  strings.TrimRight(getenv("PAY_BASE_URL", "https://pay.nextlevelcode.dev"), "/"),
		ReceiptsDir: getenv("RECEIPTS_DIR", "receipts"),

		AdminEmail:   getenv("ADMIN_EMAIL", ""),
		AdminKeyHash: strings.TrimSpace(getenv("ADMIN_KEY_HASH", "")),
		CompanyName:  getenv("COMPANY_NAME", "NextLevelCode"),

		InvoiceTime: getenv("INVOICE_TIME", "08:00"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
