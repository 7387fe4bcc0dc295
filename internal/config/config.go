// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server and worker read from the environment.
type Config struct {
	AppName     string
	Environment string
	LogLevel    string
	HTTPPort    string

	DatabaseURL string
	RabbitURL   string
	RedisURL    string
	SentryDSN   string

	QueueName       string
	DeadLetterQueue string
	PrefetchCount   int
	WorkerCount     int

	SlackBotToken string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ProviderTimeout     time.Duration
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	DispatchInterval time.Duration
	HistoryLimit     int
}

// Load reads configuration from the environment (and .env when present) and
// performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:     getEnv("APP_NAME", "outreach-backend"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RabbitURL:   getEnv("RABBITMQ_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		QueueName:       getEnv("DISPATCH_QUEUE", "campaign.dispatch"),
		DeadLetterQueue: getEnv("DISPATCH_DLQ", "campaign.dispatch.failed"),
		PrefetchCount:   getEnvAsInt("DISPATCH_PREFETCH", 50),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 5),

		SlackBotToken: getEnv("SLACK_BOT_TOKEN", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4"),

		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 15*time.Second),
		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 15*time.Second),

		DispatchInterval: getEnvAsDuration("DISPATCH_INTERVAL", time.Minute),
		HistoryLimit:     getEnvAsInt("CONVERSATION_HISTORY_LIMIT", 20),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SlackBotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
