package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Dispatch DispatchConfig
	Push     PushConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DispatchConfig holds the dispatch policy knobs.
type DispatchConfig struct {
	// MaxDistanceKm bounds rider eligibility, inclusive.
	MaxDistanceKm float64
	// FreshnessWindow bounds how old a booking may be to still be offered.
	FreshnessWindow time.Duration
	// AutoCancelDelay is the deferred check that cancels a still-pending
	// booking.
	AutoCancelDelay time.Duration
	// RebroadcastDelay is the pause after a decline before re-offering, so
	// the declining rider's card is withdrawn before the booking reappears.
	RebroadcastDelay time.Duration
	// DeclineThreshold is the number of distinct decliners that cancels a
	// still-pending booking.
	DeclineThreshold int
	// ReofferSeen controls whether a re-broadcast goes to riders who were
	// already offered the booking and ignored it. Explicit decliners are
	// always excluded.
	ReofferSeen bool
	// RiderLockTTL bounds the distributed lock held around accept
	// validation.
	RiderLockTTL time.Duration
}

// PushConfig holds push-notification delivery configuration.
type PushConfig struct {
	Endpoint string
	Key      string
	Enabled  bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "courier"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "courier-dispatch"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Dispatch: DefaultDispatchConfig(),
		Push: PushConfig{
			Endpoint: getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/v1/projects/courier/messages:send"),
			Key:      getEnv("FCM_SERVER_KEY", ""),
			Enabled:  getBoolEnv("FCM_ENABLED", false),
		},
	}
}

// DefaultDispatchConfig returns the dispatch policy defaults, overridable
// via environment.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxDistanceKm:    getFloatEnv("DISPATCH_MAX_DISTANCE_KM", 5.0),
		FreshnessWindow:  getDurationEnv("DISPATCH_FRESHNESS_WINDOW", 5*time.Minute),
		AutoCancelDelay:  getDurationEnv("DISPATCH_AUTO_CANCEL_DELAY", 5*time.Minute),
		RebroadcastDelay: getDurationEnv("DISPATCH_REBROADCAST_DELAY", 500*time.Millisecond),
		DeclineThreshold: getIntEnv("DISPATCH_DECLINE_THRESHOLD", 5),
		ReofferSeen:      getBoolEnv("DISPATCH_REOFFER_SEEN", true),
		RiderLockTTL:     getDurationEnv("DISPATCH_RIDER_LOCK_TTL", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
