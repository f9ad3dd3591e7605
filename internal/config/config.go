// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
	LogLevel  slog.Level
}

// Load reads configuration from a .env file (if present) and the
// environment. Environment variables win over .env values. JWT_SECRET
// is the only required setting.
func Load() (Config, error) {
	// Missing .env is fine; only a malformed one is an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Config{
		Port:     8080,
		DBPath:   "data/registry.db",
		LogLevel: slog.LevelInfo,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelStr)); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", levelStr, err)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}
