package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret string

	// Audit pipeline
	QueueCapacity int
	WriteTimeout  time.Duration
	DrainTimeout  time.Duration

	// Retention
	Retention      time.Duration
	PurgeInterval  time.Duration
	PurgeBatchSize int
	PurgeMaxBatch  int

	// Operations key (bcrypt hash) guarding the purge endpoint.
	OpsKeyHash string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get values from environment variables with defaults
	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tribune"),
		DBPassword: getEnv("DB_PASSWORD", "tribune"),
		DBName:     getEnv("DB_NAME", "tribune_audit"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		// Audit pipeline
		QueueCapacity: getEnvInt("AUDIT_QUEUE_CAPACITY", 2048),
		WriteTimeout:  getEnvDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		DrainTimeout:  getEnvDuration("AUDIT_DRAIN_TIMEOUT", 5*time.Second),

		// Retention
		Retention:      getEnvDuration("AUDIT_RETENTION", 365*24*time.Hour),
		PurgeInterval:  getEnvDuration("AUDIT_PURGE_INTERVAL", 24*time.Hour),
		PurgeBatchSize: getEnvInt("AUDIT_PURGE_BATCH_SIZE", 500),
		PurgeMaxBatch:  getEnvInt("AUDIT_PURGE_MAX_BATCHES", 1000),

		OpsKeyHash: getEnv("AUDIT_OPS_KEY_HASH", ""),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
