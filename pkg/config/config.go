package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Analytics  AnalyticsConfig
	Migrations MigrationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig bounds request volume per client IP. Limits are fixed windows.
type RateLimitConfig struct {
	Enabled    bool
	AuthLimit  int
	AuthWindow time.Duration
	APILimit   int
	APIWindow  time.Duration
}

// AuditConfig tunes the background audit writer.
type AuditConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	WriteTimeout time.Duration
}

// AnalyticsConfig governs dashboard aggregation.
type AnalyticsConfig struct {
	TrendDays int
}

// MigrationsConfig controls schema setup during serve.
type MigrationsConfig struct {
	AutoMigrate bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:    v.GetBool("ENABLE_RATE_LIMIT"),
		AuthLimit:  v.GetInt("RATE_LIMIT_AUTH_MAX"),
		AuthWindow: parseDuration(v.GetString("RATE_LIMIT_AUTH_WINDOW"), time.Hour),
		APILimit:   v.GetInt("RATE_LIMIT_API_MAX"),
		APIWindow:  parseDuration(v.GetString("RATE_LIMIT_API_WINDOW"), 15*time.Minute),
	}

	cfg.Audit = AuditConfig{
		Workers:      v.GetInt("AUDIT_WORKERS"),
		BufferSize:   v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries:   v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("AUDIT_RETRY_DELAY"), time.Second),
		WriteTimeout: parseDuration(v.GetString("AUDIT_WRITE_TIMEOUT"), 5*time.Second),
	}

	trendDays := v.GetInt("ANALYTICS_TREND_DAYS")
	if trendDays <= 0 {
		trendDays = 7
	}
	cfg.Analytics = AnalyticsConfig{TrendDays: trendDays}

	cfg.Migrations = MigrationsConfig{AutoMigrate: v.GetBool("AUTO_MIGRATE")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hospital_system")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "hims-api")

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_AUTH_MAX", 5)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "1h")
	v.SetDefault("RATE_LIMIT_API_MAX", 100)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "15m")

	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "1s")
	v.SetDefault("AUDIT_WRITE_TIMEOUT", "5s")

	v.SetDefault("ANALYTICS_TREND_DAYS", 7)
	v.SetDefault("AUTO_MIGRATE", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
