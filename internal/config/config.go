// Package config loads phonebook configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultListenAddr      = ":3001"
	defaultLogLevel        = "info"
	defaultSubjectPrefix   = "phonebook"
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// Config holds service configuration values.
type Config struct {
	ListenAddr string
	DBURI      string
	LogLevel   string

	DevMode        bool
	MetricsEnabled bool
	MigrateOnStart bool

	NATSURL           string
	NATSSubjectPrefix string
	BreakerFailures   int
	BreakerTimeout    time.Duration

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:        listenAddr(),
		DBURI:             strings.TrimSpace(os.Getenv("PHONEBOOK_DB_URI")),
		LogLevel:          strings.ToLower(envOrDefault("PHONEBOOK_LOG_LEVEL", defaultLogLevel)),
		DevMode:           envBool("PHONEBOOK_DEV_MODE", false),
		MetricsEnabled:    envBool("PHONEBOOK_METRICS_ENABLED", true),
		MigrateOnStart:    envBool("PHONEBOOK_MIGRATE_ON_START", true),
		NATSURL:           strings.TrimSpace(os.Getenv("PHONEBOOK_NATS_URL")),
		NATSSubjectPrefix: strings.TrimSpace(envOrDefault("PHONEBOOK_NATS_SUBJECT_PREFIX", defaultSubjectPrefix)),
		BreakerFailures:   envPositiveInt("PHONEBOOK_BREAKER_FAILURES", defaultBreakerFailures),
		BreakerTimeout:    envPositiveDuration("PHONEBOOK_BREAKER_TIMEOUT", defaultBreakerTimeout),
		ShutdownTimeout:   envPositiveDuration("PHONEBOOK_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if cfg.DBURI == "" {
		return Config{}, fmt.Errorf("PHONEBOOK_DB_URI is required")
	}
	if cfg.NATSSubjectPrefix == "" {
		cfg.NATSSubjectPrefix = defaultSubjectPrefix
	}

	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// listenAddr prefers PHONEBOOK_LISTEN_ADDR, then PORT as used by most
// hosting platforms.
func listenAddr() string {
	if v := strings.TrimSpace(os.Getenv("PHONEBOOK_LISTEN_ADDR")); v != "" {
		return v
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return defaultListenAddr
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return b
}

func envPositiveInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}

func envPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
