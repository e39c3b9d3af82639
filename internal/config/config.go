// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreSQLite = "sqlite"
	SessionStoreRedis  = "redis"
	SessionStoreMySQL  = "mysql"
)

// Object storage backends.
const (
	StorageGateway = "gateway"
	StorageMinIO   = "minio"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GatewayURL     string `env:"CU_GATEWAY_URL,required"`
	GatewayAnonKey string `env:"CU_GATEWAY_ANON_KEY,required"`
	GatewayTimeout int    `env:"CU_GATEWAY_TIMEOUT" envDefault:"15"` // seconds

	SessionSecret string `env:"CU_SESSION_SECRET,required"`
	ServerHost    string `env:"CU_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"CU_SERVER_PORT" envDefault:"8080"`
	BaseURL       string `env:"CU_BASE_URL" envDefault:"http://localhost:8080"`
	Env           string `env:"CU_ENV" envDefault:"development"`
	LogLevel      string `env:"CU_LOG_LEVEL" envDefault:"info"`

	// Session store
	SessionStore  string `env:"CU_SESSION_STORE" envDefault:"memory"`
	SessionDBPath string `env:"CU_SESSION_DB_PATH" envDefault:"./data/sessions.db"`
	RedisURL      string `env:"CU_REDIS_URL"`

	// SessionMySQLDSN is a go-sql-driver DSN, e.g. user:pass@tcp(db:3306)/composerunion.
	SessionMySQLDSN string `env:"CU_SESSION_MYSQL_DSN"`

	// Object storage
	StorageBackend string `env:"CU_STORAGE_BACKEND" envDefault:"gateway"`
	StorageBucket  string `env:"CU_STORAGE_BUCKET" envDefault:"blog-images"`
	MinIOEndpoint  string `env:"CU_MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"CU_MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"CU_MINIO_SECRET_KEY"`
	MinIOUseSSL    bool   `env:"CU_MINIO_USE_SSL" envDefault:"false"`
	MinIOPublicURL string `env:"CU_MINIO_PUBLIC_URL"`

	// Uploaded images wider than this are scaled down; 0 keeps every size
	ImageMaxWidth int `env:"CU_IMAGE_MAX_WIDTH" envDefault:"1600"`

	// How often the backend is checked for the backend_up gauge; empty disables the check
	BackendCheckSchedule string `env:"CU_BACKEND_CHECK_SCHEDULE" envDefault:"@every 1m"`

	// Serve a robots.txt that turns every crawler away, for staging sites
	RobotsDisallowAll bool `env:"CU_ROBOTS_DISALLOW_ALL" envDefault:"false"`

	// Categories offered by the blog filter bar and the post editor
	BlogCategories []string `env:"CU_BLOG_CATEGORIES" envSeparator:"," envDefault:"news,composition,industry,interviews"`

	// Advertisement placeholder attributes
	AdsClient string `env:"CU_ADS_CLIENT" envDefault:"ca-pub-XXXXXXXXXXXXXXXX"`
	AdsSlot   string `env:"CU_ADS_SLOT" envDefault:"1234567890"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// GatewayRequestTimeout returns the per-request transport timeout.
func (c Config) GatewayRequestTimeout() time.Duration {
	return time.Duration(c.GatewayTimeout) * time.Second
}

// OAuthRedirectURL is where the gateway sends the browser back after an OAuth sign-in.
func (c Config) OAuthRedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/callback"
}

// PasswordResetURL is the page password reset emails link to.
func (c Config) PasswordResetURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/reset-password"
}

// ImageOrigin is the origin uploaded post images are served from.
func (c Config) ImageOrigin() string {
	raw := c.GatewayURL
	if c.StorageBackend == StorageMinIO {
		raw = c.MinIOPublicURL
		if raw == "" {
			scheme := "http"
			if c.MinIOUseSSL {
				scheme = "https"
			}
			raw = scheme + "://" + c.MinIOEndpoint
		}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("CU_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("CU_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return errors.New("CU_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	u, err := url.Parse(c.GatewayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CU_GATEWAY_URL must be an absolute URL, got %q", c.GatewayURL)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("CU_GATEWAY_TIMEOUT must be positive, got %d", c.GatewayTimeout)
	}

	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreSQLite:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return errors.New("CU_REDIS_URL is required when CU_SESSION_STORE=redis")
		}
	case SessionStoreMySQL:
		if c.SessionMySQLDSN == "" {
			return errors.New("CU_SESSION_MYSQL_DSN is required when CU_SESSION_STORE=mysql")
		}
		if _, err := mysql.ParseDSN(c.SessionMySQLDSN); err != nil {
			return fmt.Errorf("invalid CU_SESSION_MYSQL_DSN: %w", err)
		}
	default:
		return fmt.Errorf("unknown CU_SESSION_STORE %q", c.SessionStore)
	}

	switch c.StorageBackend {
	case StorageGateway:
	case StorageMinIO:
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			return errors.New("CU_MINIO_ENDPOINT, CU_MINIO_ACCESS_KEY and CU_MINIO_SECRET_KEY are required when CU_STORAGE_BACKEND=minio")
		}
	default:
		return fmt.Errorf("unknown CU_STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.ImageMaxWidth < 0 {
		return fmt.Errorf("CU_IMAGE_MAX_WIDTH must not be negative, got %d", c.ImageMaxWidth)
	}

	cats := c.BlogCategories[:0]
	for _, cat := range c.BlogCategories {
		if cat = strings.TrimSpace(cat); cat != "" {
			cats = append(cats, cat)
		}
	}
	c.BlogCategories = cats

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
