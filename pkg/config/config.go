package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	// Shared service token the band's main system authenticates with.
	APIToken string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	FirebaseCredentials string
	FCMBatchLimit       int

	APNSKeyFile       string
	APNSKeyID         string
	APNSTeamID        string
	APNSTopic         string
	APNSUseSandbox    bool
	APNSTokenValidity time.Duration
	APNSRenewalMargin time.Duration

	GoogleServiceAccountFile string
	SpreadsheetID            string
	SheetName                string

	ProviderTimeout      time.Duration
	DispatchWorkers      int
	DispatchRetries      int
	DispatchBackoffBase  time.Duration
	DispatchRescanPeriod time.Duration

	TokenStaleness time.Duration

	QueueWorkers      int
	QueuePollInterval time.Duration
	QueueLease        time.Duration
	QueueMaxAttempts  int
	QueueBackoffBase  time.Duration
	QueueBackoffCap   time.Duration
	QueueJitter       float64
	ApplyTimeout      time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIToken: getEnv("BANDSCAN_API_TOKEN", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "bandscan"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      getDurationEnv("CACHE_TTL", 5*time.Minute),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMBatchLimit:       getIntEnv("FCM_BATCH_LIMIT", 500),

		APNSKeyFile:       getEnv("APNS_KEY_FILE", ""),
		APNSKeyID:         getEnv("APNS_KEY_ID", ""),
		APNSTeamID:        getEnv("APNS_TEAM_ID", ""),
		APNSTopic:         getEnv("APNS_BUNDLE_ID", ""),
		APNSUseSandbox:    getBoolEnv("APNS_USE_SANDBOX", false),
		APNSTokenValidity: getDurationEnv("APNS_TOKEN_VALIDITY", 60*time.Minute),
		APNSRenewalMargin: getDurationEnv("APNS_RENEWAL_MARGIN", 20*time.Minute),

		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		SpreadsheetID:            getEnv("SPREADSHEET_ID", ""),
		SheetName:                getEnv("SHEET_NAME", "Roster"),

		ProviderTimeout:      getDurationEnv("PROVIDER_TIMEOUT", 10*time.Second),
		DispatchWorkers:      getIntEnv("DISPATCH_WORKERS", 4),
		DispatchRetries:      getIntEnv("DISPATCH_RETRIES", 3),
		DispatchBackoffBase:  getDurationEnv("DISPATCH_BACKOFF_BASE", 2*time.Second),
		DispatchRescanPeriod: getDurationEnv("DISPATCH_RESCAN_PERIOD", 30*time.Second),

		TokenStaleness: getDurationEnv("TOKEN_STALENESS", 720*time.Hour),

		QueueWorkers:      getIntEnv("QUEUE_WORKERS", 2),
		QueuePollInterval: getDurationEnv("QUEUE_POLL_INTERVAL", 5*time.Second),
		QueueLease:        getDurationEnv("QUEUE_LEASE", 60*time.Second),
		QueueMaxAttempts:  getIntEnv("QUEUE_MAX_ATTEMPTS", 5),
		QueueBackoffBase:  getDurationEnv("QUEUE_BACKOFF_BASE", 30*time.Second),
		QueueBackoffCap:   getDurationEnv("QUEUE_BACKOFF_CAP", time.Hour),
		QueueJitter:       getFloatEnv("QUEUE_BACKOFF_JITTER", 0.2),
		ApplyTimeout:      getDurationEnv("APPLY_TIMEOUT", 30*time.Second),
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
