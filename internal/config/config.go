// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Calendar CalendarConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds database connection settings.
// Driver is "postgres" or "sqlite"; for sqlite DBName is the file path.
type DatabaseConfig struct {
	Driver      string
	URLOverride string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	Debug       bool
	Migrations  bool
}

// DSN returns the connection string handed to gorm.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.DBName
	}
	if d.URLOverride != "" {
		return d.URLOverride
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format, as golang-migrate expects it.
func (d DatabaseConfig) URL() string {
	if d.URLOverride != "" {
		return d.URLOverride
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env               string
	LogLevel          string
	SessionSecret     string
	JWTTTL            time.Duration
	ProfileCacheTTL   time.Duration
	ProfileCacheSize  int
	StorageDir        string
	MaxUploadMB       int
	MetricsEnabled    bool
	TracingEnabled    bool
	OTLPEndpoint      string
	SeedAdminEmail    string
	SeedAdminPassword string
}

// Dev reports whether the app runs outside production.
func (a AppConfig) Dev() bool { return a.Env != "production" }

// CalendarConfig holds the Google service account used for demo invitations.
// Leaving CalendarID empty disables invitations.
type CalendarConfig struct {
	CalendarID   string
	ClientEmail  string
	PrivateKey   string
	EventMinutes int
}

// Enabled reports whether enough settings are present to call the calendar API.
func (c CalendarConfig) Enabled() bool {
	return c.CalendarID != "" && c.ClientEmail != "" && c.PrivateKey != ""
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", ""),
			Port:         getEnv("SERVER_PORT", getEnv("PORT", "8080")),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			URLOverride: getEnv("DATABASE_URL", ""),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "crm"),
			Password:    getEnv("DB_PASSWORD", "crm123"),
			DBName:      getEnv("DB_NAME", "crm"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			Debug:       getEnvBool("DB_DEBUG", false),
			Migrations:  getEnvBool("MIGRATIONS", false),
		},
		App: AppConfig{
			Env:               getEnv("APP_ENV", "development"),
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			SessionSecret:     getEnv("SESSION_SECRET", ""),
			JWTTTL:            getEnvDuration("JWT_TTL", 24*time.Hour),
			ProfileCacheTTL:   getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute),
			ProfileCacheSize:  getEnvInt("PROFILE_CACHE_SIZE", 1024),
			StorageDir:        getEnv("STORAGE_DIR", "./data/uploads"),
			MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 20),
			MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
			TracingEnabled:    getEnvBool("TRACING_ENABLED", false),
			OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
			SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		},
		Calendar: CalendarConfig{
			CalendarID:   getEnv("GOOGLE_CALENDAR_ID", ""),
			ClientEmail:  getEnv("GOOGLE_SA_EMAIL", ""),
			PrivateKey:   getEnv("GOOGLE_SA_PRIVATE_KEY", ""),
			EventMinutes: getEnvInt("GOOGLE_EVENT_MINUTES", 30),
		},
	}
}

// Validate rejects settings the server must not start with.
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if !c.App.Dev() && c.App.SessionSecret == "" {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if c.App.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// Secret returns the signing secret, falling back to a development value.
func (a AppConfig) Secret() string {
	if a.SessionSecret != "" {
		return a.SessionSecret
	}
	return "devsessionsecret"
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values like "15m" or "24h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
