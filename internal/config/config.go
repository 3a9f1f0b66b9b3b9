// Package config loads runtime configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout  time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"120s"`

	// OCREndpoint is the fixed HTTPS URL of the receipt-recognition service.
	OCREndpoint string        `envconfig:"OCR_ENDPOINT" default:"https://splitbill.inviteweeding.my.id"`
	OCRTimeout  time.Duration `envconfig:"OCR_TIMEOUT" default:"90s"`

	// UploadRateLimit caps recognition uploads per client IP per minute.
	// Uploads are the only expensive call in the workflow.
	UploadRateLimit int `envconfig:"UPLOAD_RATE_LIMIT" default:"10"`

	// MaxUploadBytes bounds the accepted receipt image size.
	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
}

// Load reads configuration from a .env file when present, then the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the server runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
