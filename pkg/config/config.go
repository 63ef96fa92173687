package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DatabaseURL string

	FirebaseCredentials string
	FCMDryRun           bool

	NotificationTimezone string
	SchedulerInterval    time.Duration
	DispatchWorkers      int
	DeliveryTimeout      time.Duration
	RetryBackoff         time.Duration
	RetryMaxAttempts     int
	LeaseTTL             time.Duration

	RedisURL     string
	TickLockTTL  time.Duration
	TickLockName string

	GoogleProjectID   string
	GoogleCredentials string
	PubSubTopic       string

	AdminJWTSecret string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("APP_ENV", "production"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", "sqlite://ipos.db"),
		FirebaseCredentials:  getEnv("FIREBASE_CREDENTIALS", ""),
		FCMDryRun:            getBool("FCM_DRY_RUN", false),
		NotificationTimezone: getEnv("NOTIFICATION_TIMEZONE", "UTC"),
		SchedulerInterval:    getDuration("SCHEDULER_INTERVAL", time.Minute),
		DispatchWorkers:      getInt("DISPATCH_WORKERS", 4),
		DeliveryTimeout:      getDuration("DELIVERY_TIMEOUT", 10*time.Second),
		RetryBackoff:         getDuration("RETRY_BACKOFF", 30*time.Minute),
		RetryMaxAttempts:     getInt("RETRY_MAX_ATTEMPTS", 3),
		LeaseTTL:             getDuration("LEASE_TTL", 5*time.Minute),
		RedisURL:             getEnv("REDIS_URL", ""),
		TickLockTTL:          getDuration("TICK_LOCK_TTL", 5*time.Minute),
		TickLockName:         getEnv("TICK_LOCK_NAME", "ipo-reminder:tick"),
		GoogleProjectID:      getEnv("GOOGLE_PROJECT_ID", ""),
		GoogleCredentials:    getEnv("GOOGLE_CREDENTIALS", ""),
		PubSubTopic:          getEnv("PUBSUB_TOPIC", "ipo-updates"),
		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// Location resolves NotificationTimezone, falling back to UTC when unknown
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.NotificationTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
