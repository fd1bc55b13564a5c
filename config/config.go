// Package config loads the runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Builder strategy names selectable via CART_BUILDER.
const (
	BuilderAnthropic = "anthropic"
	BuilderOpenAI    = "openai"
	BuilderScripted  = "scripted"
)

// Config aggregates the runtime settings. Everything is injected through
// environment variables; nothing is hardcoded in the binary.
type Config struct {
	HTTPAddr string
	DBPath   string
	LogLevel string

	// RedisAddr enables the Redis session store when non-empty; otherwise
	// sessions stay in process memory.
	RedisAddr string
	RedisDB   int

	// CartBuilder selects the cart-building strategy.
	CartBuilder     string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	InstamartEndpoint string

	MaxRounds    int
	RoundTimeout time.Duration
}

// Load reads and validates the configuration. A .env file in the working
// directory is applied first when present.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DBPath:            getEnv("DB_PATH", "cartpilot.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		CartBuilder:       getEnv("CART_BUILDER", BuilderAnthropic),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		InstamartEndpoint: getEnv("INSTAMART_ENDPOINT", ""),
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	maxRounds, err := getEnvInt("AGENT_MAX_ROUNDS", 50)
	if err != nil {
		return Config{}, fmt.Errorf("invalid AGENT_MAX_ROUNDS: %w", err)
	}
	if maxRounds <= 0 {
		return Config{}, fmt.Errorf("AGENT_MAX_ROUNDS must be > 0")
	}
	cfg.MaxRounds = maxRounds

	timeoutSec, err := getEnvInt("AGENT_ROUND_TIMEOUT_SEC", 0)
	if err != nil {
		return Config{}, fmt.Errorf("invalid AGENT_ROUND_TIMEOUT_SEC: %w", err)
	}
	if timeoutSec < 0 {
		return Config{}, fmt.Errorf("AGENT_ROUND_TIMEOUT_SEC must be >= 0")
	}
	cfg.RoundTimeout = time.Duration(timeoutSec) * time.Second

	switch cfg.CartBuilder {
	case BuilderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return Config{}, fmt.Errorf("ANTHROPIC_API_KEY is required for CART_BUILDER=%s", BuilderAnthropic)
		}
	case BuilderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY is required for CART_BUILDER=%s", BuilderOpenAI)
		}
	case BuilderScripted:
	default:
		return Config{}, fmt.Errorf("unknown CART_BUILDER %q", cfg.CartBuilder)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
