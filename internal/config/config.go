// Package config loads the service configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no config path is given.
const DefaultConfigPath = "config.yaml"

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Extractor ExtractorConfig `yaml:"extractor"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Retention RetentionConfig `yaml:"retention"`
	Stripe    StripeConfig    `yaml:"stripe"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	FrontendURL     string        `yaml:"frontend-url"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ExtractorConfig holds upstream extraction provider settings.
type ExtractorConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api-key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds extraction request rates per API key.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// RetentionConfig bounds how long usage ledger rows are kept. Zero days
// disables the sweeper.
type RetentionConfig struct {
	Days          int           `yaml:"days"`
	SweepInterval time.Duration `yaml:"sweep-interval"`
}

// StripeConfig holds payment provider settings.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads the config file at path and applies environment overrides. A
// missing file is not an error; defaults plus environment variables make a
// complete configuration for local runs.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case os.IsNotExist(errRead):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnvOverrides(cfg)

	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			FrontendURL:     "http://localhost:3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "fetchify.db",
		},
		JWT: JWTConfig{
			Expiry: 24 * time.Hour,
		},
		Extractor: ExtractorConfig{
			Timeout: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
		Retention: RetentionConfig{
			Days:          90,
			SweepInterval: 6 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"FETCHIFY_ADDR":         &cfg.Server.Addr,
		"FETCHIFY_FRONTEND_URL": &cfg.Server.FrontendURL,
		"FETCHIFY_DATABASE_DSN": &cfg.Database.DSN,
		"FETCHIFY_JWT_SECRET":   &cfg.JWT.Secret,
		"ZYTE_API_URL":          &cfg.Extractor.Endpoint,
		"ZYTE_API_KEY":          &cfg.Extractor.APIKey,
		"STRIPE_SECRET_KEY":     &cfg.Stripe.SecretKey,
		"STRIPE_WEBHOOK_SECRET": &cfg.Stripe.WebhookSecret,
		"SMTP_HOST":             &cfg.SMTP.Host,
		"SMTP_USERNAME":         &cfg.SMTP.Username,
		"SMTP_PASSWORD":         &cfg.SMTP.Password,
		"SMTP_FROM":             &cfg.SMTP.From,
		"FETCHIFY_LOG_LEVEL":    &cfg.Logging.Level,
		"FETCHIFY_LOG_FILE":     &cfg.Logging.File,
	}
	for key, target := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			cfg.SMTP.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("FETCHIFY_RETENTION_DAYS")); v != "" {
		var days int
		if _, err := fmt.Sscanf(v, "%d", &days); err == nil && days >= 0 {
			cfg.Retention.Days = days
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt secret is required")
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("config: jwt expiry must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: rate limit requests and window must be positive")
	}
	return nil
}
