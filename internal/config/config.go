// Package config loads service configuration from a .env file and the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server binary needs to start.
type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	TransferURL   string
	EscrowAccount string
}

// Load reads an optional .env file, then the environment.
// JWT_SECRET and TRANSFER_URL are required; everything else has defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err == nil {
		slog.Info("loaded configuration from .env file")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/lessonledger.db"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TransferURL:   os.Getenv("TRANSFER_URL"),
		EscrowAccount: getEnv("ESCROW_ACCOUNT", "lessonledger-escrow"),
	}

	ttl := getEnv("TOKEN_TTL", "24h")
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL %q: %w", ttl, err)
	}
	cfg.TokenTTL = d

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.TransferURL == "" {
		return nil, fmt.Errorf("TRANSFER_URL is required but not set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
