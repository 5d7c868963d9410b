package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds session runtime knobs read from the environment.
type Config struct {
	TTL        time.Duration `env:"GALLERY_SESSION_TTL"    envDefault:"720h"`
	CookieName string        `env:"GALLERY_SESSION_COOKIE" envDefault:"gallery_session"`
	Secure     bool          `env:"GALLERY_SESSION_SECURE"`
	// DevLogin enables POST /api/auth/session, which signs in by email without a password.
	DevLogin bool `env:"GALLERY_DEV_LOGIN"`
	// Secret overrides the signing key kept in the secret store.
	Secret string `env:"GALLERY_SESSION_SECRET"`
}

// LoadConfigFromEnv parses Config and fills defaults for blank values.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	cfg.CookieName = strings.TrimSpace(cfg.CookieName)
	if cfg.CookieName == "" {
		cfg.CookieName = "gallery_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	return cfg, nil
}
