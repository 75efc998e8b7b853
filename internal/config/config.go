package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, resolved from the environment.
type Config struct {
	// Relational source
	DatabaseURL string

	// Search index
	ElasticURL string
	IndexName  string
	Languages  []string

	// Sync behaviour
	BatchSize      int
	PollInterval   time.Duration
	RequestTimeout time.Duration

	// Watermark state: file path, or Redis when RedisURL is set
	StateFile string
	RedisURL  string
}

// Load reads configuration from the environment, applying defaults.
// A .env file next to the binary is honoured when present.
func Load() *Config {
	_ = godotenv.Load()

	dbUser := getEnv("POSTGRES_USER", "app")
	dbPass := getEnv("POSTGRES_PASSWORD", "app")
	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbName := getEnv("POSTGRES_DB", "movies_database")
	dbSSL := getEnv("POSTGRES_SSLMODE", "disable")

	dbURL := getEnv("DATABASE_URL", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL))

	return &Config{
		DatabaseURL:    dbURL,
		ElasticURL:     getEnv("ES_URL", "http://localhost:9200"),
		IndexName:      getEnv("ES_INDEX", "movies"),
		Languages:      getEnvList("ES_LANGUAGES", []string{"english", "russian"}),
		BatchSize:      getEnvInt("BATCH_SIZE", 100),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 10*time.Second),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		StateFile:      getEnv("STATE_FILE", "state.json"),
		RedisURL:       getEnv("REDIS_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
