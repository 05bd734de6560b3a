package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	DatabaseURL string // Postgres store; the embedded store is used when empty
	DataDir     string // Badger directory, ":memory:" for an in-memory store
	RedisURL    string

	BroadcastRelay bool // Fan out room events across instances through Redis

	GeminiAPIKey         string
	GeminiModel          string
	GeneratorMaxAttempts int
	GeneratorRetryDelay  time.Duration
	GeneratorTimeout     time.Duration

	RateLimitRPS      float64
	RateLimitBurst    int
	TrustProxyHeaders bool // Take the client address from X-Forwarded-For / X-Real-IP

	SeedDefaultBattle bool
	TrendingLimit     int
}

// InMemoryDataDir selects a non-persistent embedded store
const InMemoryDataDir = ":memory:"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	redisURL := getEnv("REDIS_URL", "")

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		AllowedOrigins:       parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Environment:          getEnv("ENVIRONMENT", "production"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DataDir:              getEnv("DATA_DIR", "./data/battles"),
		RedisURL:             redisURL,
		BroadcastRelay:       getBoolEnv("BROADCAST_RELAY", redisURL != ""),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-flash-latest"),
		GeneratorMaxAttempts: getIntEnv("GENERATOR_MAX_ATTEMPTS", 2),
		GeneratorRetryDelay:  getDurationEnv("GENERATOR_RETRY_DELAY", time.Second),
		GeneratorTimeout:     getDurationEnv("GENERATOR_TIMEOUT", 10*time.Second),
		RateLimitRPS:         getFloatEnv("RATE_LIMIT_RPS", 5),
		RateLimitBurst:       getIntEnv("RATE_LIMIT_BURST", 10),
		TrustProxyHeaders:    getBoolEnv("TRUST_PROXY_HEADERS", false),
		SeedDefaultBattle:    getBoolEnv("SEED_DEFAULT_BATTLE", true),
		TrendingLimit:        getIntEnv("TRENDING_LIMIT", 5),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseList parses a comma-separated list into a slice, dropping blanks
func parseList(values string) []string {
	if values == "" {
		return []string{}
	}

	parts := strings.Split(values, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
