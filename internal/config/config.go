package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "Nexus"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultGeminiModel     = "gemini-3-flash-preview"
	defaultClassifierLimit = 15 * time.Second
	defaultLatency         = 2 * time.Second
	defaultErrorHold       = 2 * time.Second
	defaultSuccessHold     = 3 * time.Second
	defaultStepDelay       = 500 * time.Millisecond
	defaultDisplayDelay    = 1500 * time.Millisecond
	defaultChatRateLimit   = 20
	defaultExecutorPolicy  = "continue"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	GeminiAPIKey      string
	GeminiModel       string
	ClassifierTimeout time.Duration

	LedgerLatency     time.Duration
	LedgerErrorHold   time.Duration
	LedgerSuccessHold time.Duration

	ExecutorStepDelay    time.Duration
	ExecutorDisplayDelay time.Duration
	ExecutorPolicy       string

	ChatRateLimit  int
	AdminTokenHash string
}

// Load reads configuration values from the environment and populates a Config instance.
// DATABASE_URL and REDIS_URL are optional; without them the service runs fully in memory.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiModel:    getEnv("GEMINI_MODEL", defaultGeminiModel),
		ExecutorPolicy: strings.ToLower(getEnv("EXECUTOR_POLICY", defaultExecutorPolicy)),
		AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"CLASSIFIER_TIMEOUT", defaultClassifierLimit, &cfg.ClassifierTimeout},
		{"LEDGER_LATENCY", defaultLatency, &cfg.LedgerLatency},
		{"LEDGER_ERROR_HOLD", defaultErrorHold, &cfg.LedgerErrorHold},
		{"LEDGER_SUCCESS_HOLD", defaultSuccessHold, &cfg.LedgerSuccessHold},
		{"EXECUTOR_STEP_DELAY", defaultStepDelay, &cfg.ExecutorStepDelay},
		{"EXECUTOR_DISPLAY_DELAY", defaultDisplayDelay, &cfg.ExecutorDisplayDelay},
	}
	for _, d := range durations {
		v, err := durationFromEnv("", d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	cfg.ChatRateLimit = defaultChatRateLimit
	if v := os.Getenv("CHAT_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHAT_RATE_LIMIT: %w", err)
		}
		cfg.ChatRateLimit = n
	}

	switch cfg.ExecutorPolicy {
	case "continue", "stop":
	default:
		return Config{}, fmt.Errorf("invalid EXECUTOR_POLICY %q: want continue or stop", cfg.ExecutorPolicy)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationFromEnv reads an integer seconds variable first, then a Go duration string.
// Either key may be empty.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if durationKey != "" {
		if v := os.Getenv(durationKey); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
			}
			if d < 0 {
				return 0, fmt.Errorf("invalid %s: must not be negative", durationKey)
			}
			return d, nil
		}
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
