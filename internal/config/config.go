// Package config loads the bot's process configuration from the
// environment. Only the gateway URL and the bot's own identity are
// mandatory; NATS and PostgreSQL are optional integrations and their
// settings default to off.
package config

import (
	"fmt"
	"os"
)

// Config is the bot's full process configuration.
type Config struct {
	BotID           string // platform identity of the bot itself
	GatewayURL      string // ws:// or wss:// endpoint of the platform edge
	SuperOperatorID string // user exempt from every permission check

	RedisAddr   string
	NATSURL     string // empty disables audit publishing
	PostgresDSN string // empty disables durable stats
	Migrations  string // migrations directory for the stats schema

	MetricsAddr string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		BotID:           os.Getenv("BOT_ID"),
		GatewayURL:      os.Getenv("GATEWAY_URL"),
		SuperOperatorID: os.Getenv("SUPER_OPERATOR_ID"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		NATSURL:         os.Getenv("NATS_URL"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		Migrations:      getenv("MIGRATIONS_DIR", "migrations"),
		MetricsAddr:     getenv("METRICS_ADDR", ":9100"),
	}

	if cfg.BotID == "" {
		return nil, fmt.Errorf("config: BOT_ID is required")
	}
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("config: GATEWAY_URL is required")
	}
	return cfg, nil
}
