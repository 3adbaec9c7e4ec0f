package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/ccjoness/StellarIQ-API/services/analysis"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Cache
	CacheBackend  string
	MongoURI      string
	MongoDatabase string
	CacheTTL      time.Duration

	// Upstream market data
	AlphaVantageAPIKey  string
	AlphaVantageBaseURL string
	RateLimitPerMinute  int
	UpstreamTimeout     time.Duration

	// Monitoring
	SweepInterval         time.Duration
	AlertCooldown         time.Duration
	NotificationRetention time.Duration
	TokenRetention        time.Duration
	CleanupAt             string
	AnalysisStrategy      string
	RSIOverbought         float64
	RSIOversold           float64
	StochOverbought       float64
	StochOversold         float64

	// Notifications
	EnablePushNotifications  bool
	EnableEmailNotifications bool
	ExpoPushURL              string
	ExpoAccessToken          string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	SMTPFrom                 string

	// Admin API
	JWTSecret       string
	AdminSecretHash string
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "stellariq"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "stellariq.db"),

		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "stellariq"),
		CacheTTL:      getEnvDuration("CACHE_TTL", 900*time.Second),

		AlphaVantageAPIKey:  getEnv("ALPHA_VANTAGE_API_KEY", ""),
		AlphaVantageBaseURL: getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 5),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		SweepInterval:         getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		AlertCooldown:         getEnvDuration("ALERT_COOLDOWN", time.Hour),
		NotificationRetention: getEnvDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
		TokenRetention:        getEnvDuration("TOKEN_RETENTION", 60*24*time.Hour),
		CleanupAt:             getEnv("CLEANUP_AT", "02:00"),
		AnalysisStrategy:      getEnv("ANALYSIS_STRATEGY", "weighted"),
		RSIOverbought:         getEnvFloat("RSI_OVERBOUGHT", 70),
		RSIOversold:           getEnvFloat("RSI_OVERSOLD", 30),
		StochOverbought:       getEnvFloat("STOCH_OVERBOUGHT", 80),
		StochOversold:         getEnvFloat("STOCH_OVERSOLD", 20),

		EnablePushNotifications:  getEnvBool("ENABLE_PUSH_NOTIFICATIONS", true),
		EnableEmailNotifications: getEnvBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		ExpoPushURL:              getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		ExpoAccessToken:          getEnv("EXPO_ACCESS_TOKEN", ""),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 getEnvInt("SMTP_PORT", 587),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:                 getEnv("SMTP_FROM", "alerts@stellariq.app"),

		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key"),
		AdminSecretHash: getEnv("ADMIN_SECRET_HASH", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	const op = "config.Validate"

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return apperrors.Configuration(op, fmt.Sprintf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	switch c.CacheBackend {
	case "memory":
	case "mongo":
		if c.MongoURI == "" {
			return apperrors.Configuration(op, "MONGODB_URI is required when CACHE_BACKEND=mongo")
		}
	default:
		return apperrors.Configuration(op, fmt.Sprintf("unsupported CACHE_BACKEND %q", c.CacheBackend))
	}
	if _, err := analysis.StrategyByName(c.AnalysisStrategy); err != nil {
		return apperrors.Configuration(op, fmt.Sprintf("unknown ANALYSIS_STRATEGY %q, expected one of %s",
			c.AnalysisStrategy, strings.Join(analysis.StrategyNames(), ", ")))
	}
	if c.RateLimitPerMinute < 1 {
		return apperrors.Configuration(op, "RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	if c.CacheTTL <= 0 || c.UpstreamTimeout <= 0 || c.SweepInterval <= 0 || c.AlertCooldown <= 0 {
		return apperrors.Configuration(op, "durations must be positive")
	}
	if c.NotificationRetention <= 0 || c.TokenRetention <= 0 {
		return apperrors.Configuration(op, "retention windows must be positive")
	}
	if _, err := time.Parse("15:04", c.CleanupAt); err != nil {
		return apperrors.Configuration(op, fmt.Sprintf("CLEANUP_AT must be HH:MM, got %q", c.CleanupAt))
	}
	if c.RSIOversold >= c.RSIOverbought || c.StochOversold >= c.StochOverbought {
		return apperrors.Configuration(op, "oversold thresholds must be below overbought thresholds")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// InitDB initializes database connection
func InitDB(cfg *Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	var dialector gorm.Dialector
	if cfg.DBDriver == "sqlite" {
		log.Printf("Opening sqlite database: %s", cfg.SQLitePath)
		dialector = sqlite.Open(cfg.SQLitePath)
	} else {
		// Log connection info (masked for security)
		log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
			maskHost(cfg.DBHost),
			cfg.DBPort,
			cfg.DBUser,
			cfg.DBName,
		)
		dialector = postgres.Open(fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database ping failed: %v", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid integer for %s (%q), using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("⚠️  Invalid number for %s (%q), using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("⚠️  Invalid boolean for %s (%q), using default %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go duration strings ("15m") or bare seconds ("900").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("⚠️  Invalid duration for %s (%q), using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
