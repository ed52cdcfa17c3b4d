package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Env      string // dev, prod
	LogLevel string

	Server   ServerConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Auth     AuthConfig
	Booking  BookingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Driver   string // postgres, mongo, memory
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MongoConfig holds MongoDB configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// AuthConfig holds identity token configuration.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// BookingConfig tunes the booking engine and its background sweeper.
type BookingConfig struct {
	BroadcastTTL     time.Duration
	BasePrice        float64
	MaxCandidates    int
	SearchRadiusKm   float64
	AverageSpeedKmh  float64
	MaxWriteAttempts int
	LockTTL          time.Duration
	NotifyTimeout    time.Duration
	SweepInterval    time.Duration
	SweepTimeout     time.Duration
}

// Load loads configuration from the environment, reading a .env file first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fixitnow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getBoolEnv("DB_MIGRATE", true),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "fixitnow"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "fixitnow-booking"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDurationEnv("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Booking: BookingConfig{
			BroadcastTTL:     getDurationEnv("BROADCAST_TTL", 30*time.Minute),
			BasePrice:        getFloatEnv("BOOKING_BASE_PRICE", 75),
			MaxCandidates:    getIntEnv("BROADCAST_MAX_CANDIDATES", 10),
			SearchRadiusKm:   getFloatEnv("BROADCAST_SEARCH_RADIUS_KM", 15),
			AverageSpeedKmh:  getFloatEnv("ETA_AVERAGE_SPEED_KMH", 30),
			MaxWriteAttempts: getIntEnv("BOOKING_MAX_WRITE_ATTEMPTS", 5),
			LockTTL:          getDurationEnv("BOOKING_LOCK_TTL", 5*time.Second),
			NotifyTimeout:    getDurationEnv("NOTIFY_TIMEOUT", 3*time.Second),
			SweepInterval:    getDurationEnv("EXPIRY_SWEEP_INTERVAL", time.Minute),
			SweepTimeout:     getDurationEnv("EXPIRY_SWEEP_TIMEOUT", 20*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of postgres, mongo, memory; got %q", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Booking.BroadcastTTL <= 0 {
		errs = append(errs, errors.New("BROADCAST_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := cast.ToFloat64E(value); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := cast.ToBoolE(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") or a bare number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := cast.ToIntE(value); err == nil {
			return time.Duration(n) * time.Second
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
