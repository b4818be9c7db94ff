// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"debtr/internal/log"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string

	// Storage
	Store          string
	DBPath         string
	Namespace      string
	StoreCacheTTL  time.Duration
	StoreCacheSize int

	// AMQP; an empty URL disables the broker and reminders are only logged.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Engine
	ActivationInterval time.Duration

	// Rate limiting
	RateLimitPerMinute int
	RateLimitBurst     int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		Store:          getEnv("DEBTR_STORE", StoreSQLite),
		DBPath:         getEnv("DEBTR_DB_PATH", "./data/debtr.db"),
		Namespace:      getEnv("DEBTR_NAMESPACE", "MPT_DATA"),
		StoreCacheTTL:  getEnvDuration("STORE_CACHE_TTL", 5*time.Minute),
		StoreCacheSize: getEnvInt("STORE_CACHE_SIZE", 64),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "debtr"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notification_intents"),

		ActivationInterval: getEnvDuration("ACTIVATION_INTERVAL", time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	validStores := []string{StoreSQLite, StoreMemory}
	if !slices.Contains(validStores, c.Store) {
		errors = append(errors, fmt.Sprintf("invalid store '%s': must be one of %v", c.Store, validStores))
	}
	if c.Store == StoreSQLite && c.DBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite store")
	}
	if strings.TrimSpace(c.Namespace) == "" {
		errors = append(errors, "namespace cannot be empty")
	}
	if c.StoreCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid store cache size %d: must not be negative", c.StoreCacheSize))
	}
	if c.StoreCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid store cache TTL %v: must not be negative", c.StoreCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ActivationInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid activation interval %v: must be at least 1 second", c.ActivationInterval))
	} else if c.ActivationInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid activation interval %v: must be at most 24 hours", c.ActivationInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// BrokerEnabled reports whether reminder intents go through AMQP.
func (c *Config) BrokerEnabled() bool { return c.AMQPURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
