package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	DatabaseURL   string
	SessionSecret string
	AdminEmail    string
	BlocksGeoJSON string
	LogLevel      string
	LogFormat     string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SessionSecret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		AdminEmail:    fallback(os.Getenv("ADMIN_EMAIL"), "admin@example.com"),
		BlocksGeoJSON: fallback(os.Getenv("BLOCKS_GEOJSON"), "data/bhadrak_blocks.geojson"),
		LogLevel:      fallback(os.Getenv("LOG_LEVEL"), "info"),
		LogFormat:     fallback(os.Getenv("LOG_FORMAT"), "json"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}

	return cfg, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// String renders the config with secrets elided, for startup logging.
func (c Config) String() string {
	return fmt.Sprintf("Config{AdminEmail:%s BlocksGeoJSON:%s LogLevel:%s}", c.AdminEmail, c.BlocksGeoJSON, c.LogLevel)
}
