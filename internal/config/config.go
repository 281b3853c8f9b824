// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all service settings.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DB struct {
		Host     string `env:"DB_HOST" envDefault:"localhost"`
		Port     string `env:"DB_PORT" envDefault:"5432"`
		User     string `env:"DB_USER" envDefault:"postgres"`
		Password string `env:"DB_PASSWORD" envDefault:"postgres"`
		Name     string `env:"DB_NAME" envDefault:"registrar"`
		SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	}

	JWTSecret string `env:"JWT_SECRET,required"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	S3 struct {
		Endpoint  string `env:"S3_ENDPOINT"`
		Region    string `env:"S3_REGION" envDefault:"us-east-1"`
		Bucket    string `env:"S3_BUCKET" envDefault:"registrar-proofs"`
		AccessKey string `env:"S3_ACCESS_KEY"`
		SecretKey string `env:"S3_SECRET_KEY"`
	}

	// DiscordWebhookURL receives event-publish announcements; empty disables.
	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// Load reads .env (when present) and parses the environment.
func Load() (Config, error) {
	// Missing .env is fine in deployed environments.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
