package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the cargolink API. Values are loaded
// from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Session  SessionConfig  `yaml:"session"`
	HTTP     HTTPConfig     `yaml:"http"`
	Mail     MailConfig     `yaml:"mail"`
	Carrier  CarrierConfig  `yaml:"carrier"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig contains credential-store settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// SuperAdminEmail short-circuits role resolution for one operator
	// account; leave empty to disable the override.
	SuperAdminEmail string `yaml:"super_admin_email"`
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	SafetyTimeout time.Duration `yaml:"safety_timeout"`
	RoleCachePath string        `yaml:"role_cache_path"`
}

// HTTPConfig contains API server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MailConfig contains transactional email provider settings.
type MailConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	APIKey       string        `yaml:"api_key"`
	FromAddress  string        `yaml:"from_address"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// CarrierConfig contains carrier webhook settings. An empty token disables
// the webhook endpoint.
type CarrierConfig struct {
	WebhookToken string `yaml:"webhook_token"`
}

func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			SafetyTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Mail: MailConfig{
			FromAddress:  "noreply@cargolink.example",
			PollInterval: 15 * time.Second,
		},
	}
}

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. An empty path skips the file and uses defaults plus
// environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CARGOLINK_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CARGOLINK_SUPER_ADMIN_EMAIL"); v != "" {
		cfg.Auth.SuperAdminEmail = v
	}
	if v := os.Getenv("CARGOLINK_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("CARGOLINK_MAIL_API_KEY"); v != "" {
		cfg.Mail.APIKey = v
	}
	if v := os.Getenv("CARGOLINK_CARRIER_WEBHOOK_TOKEN"); v != "" {
		cfg.Carrier.WebhookToken = v
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Session.SafetyTimeout <= 0 {
		return fmt.Errorf("session.safety_timeout must be positive")
	}
	return nil
}
