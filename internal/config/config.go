package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode      string
	HTTPAddr  string
	APIPrefix string
	Version   string

	// shared-secret auth
	APIKey       string
	APIKeyHash   string
	APIKeyHeader string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ThreadLockTTL time.Duration

	ChatContextWindowSize int
	DefaultAgentType      string

	// AI provider
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	GeminiAPIKey      string
	GeminiModel       string

	// rabbitMQ, empty URL disables async jobs
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	RateLimitRPS    float64
	RateLimitBurst  int
	StreamHeartbeat time.Duration

	LogLevel  string
	LogFormat string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	return Config{
		Mode:      getEnv("MODE", "dev"),
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		APIPrefix: getEnv("API_PREFIX", "/api/v1"),
		Version:   getEnv("APP_VERSION", "1.0.0"),

		APIKey:       os.Getenv("API_KEY"),
		APIKeyHash:   os.Getenv("API_KEY_HASH"),
		APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:    getEnv("DB_DSN", "./sqlite.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ThreadLockTTL: getEnvDuration("THREAD_LOCK_TTL", 5*time.Minute),

		ChatContextWindowSize: getEnvInt("CHAT_CONTEXT_WINDOW_SIZE", 0),
		DefaultAgentType:      getEnv("DEFAULT_AGENT_TYPE", "bank_support"),

		AIProvider:        strings.ToLower(getEnv("AI_PROVIDER", "ollama")),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getEnv("RABBIT_QUEUE", "agent_jobs"),
		WorkerConcurrency: clamp(getEnvInt("WORKER_CONCURRENCY", 2), 1, 50),

		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 10),
		StreamHeartbeat: getEnvDuration("STREAM_HEARTBEAT", 15*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate reports configuration that would leave the service unusable.
func (c Config) Validate() error {
	if c.APIKey == "" && c.APIKeyHash == "" {
		return errors.New("API_KEY or API_KEY_HASH is required")
	}
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER=%q", c.DBDriver)
	}
	if c.APIKeyHeader == "" {
		return errors.New("API_KEY_HEADER must not be empty")
	}
	return nil
}

func (c Config) IsDev() bool { return c.Mode == "dev" }

func (c Config) AsyncJobsEnabled() bool { return c.RabbitURL != "" }

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
