package config

import (
	"fmt"
	"strings"
	"time"

	"ekadashi.app/errors"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the application configuration structure
type Config struct {
	Server    ServerConfig    `split_words:"true"`
	Database  DatabaseConfig  `split_words:"true"`
	Location  LocationConfig  `split_words:"true"`
	Geocode   GeocodeConfig   `split_words:"true"`
	Cache     CacheConfig     `split_words:"true"`
	Scheduler SchedulerConfig `split_words:"true"`
	Notifier  NotifierConfig  `split_words:"true"`
	Dataset   DatasetConfig   `split_words:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// DatabaseConfig contains database connection settings. Driver "sqlite" keeps
// all state in a local file, "postgres" connects to an external server.
type DatabaseConfig struct {
	Driver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	Path     string `envconfig:"DB_PATH" default:"ekadashi.db"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"ekadashi"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

// GetDSN returns a formatted postgres connection string
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// LocationConfig contains settings for the location resolution cascade
type LocationConfig struct {
	FusedAgentURL   string        `envconfig:"LOCATION_FUSED_AGENT_URL" default:""`
	LegacyAgentURL  string        `envconfig:"LOCATION_LEGACY_AGENT_URL" default:""`
	FreshFixTimeout time.Duration `envconfig:"LOCATION_FRESH_FIX_TIMEOUT" default:"30s"`
	ActiveTimeout   time.Duration `envconfig:"LOCATION_ACTIVE_TIMEOUT" default:"5s"`
	FreshnessWindow time.Duration `envconfig:"LOCATION_FRESHNESS_WINDOW" default:"10m"`
	HomeBaseEnabled bool          `envconfig:"LOCATION_HOME_BASE_ENABLED" default:"true"`
	HomeBaseLat     float64       `envconfig:"LOCATION_HOME_BASE_LAT" default:"28.6139"`
	HomeBaseLng     float64       `envconfig:"LOCATION_HOME_BASE_LNG" default:"77.2090"`
}

// GeocodeConfig contains settings for reverse geocoding
type GeocodeConfig struct {
	BaseURL        string        `envconfig:"GEOCODE_BASE_URL" default:""`
	Timeout        time.Duration `envconfig:"GEOCODE_TIMEOUT" default:"5s"`
	FallbackRadius float64       `envconfig:"GEOCODE_FALLBACK_RADIUS_KM" default:"50"`
}

// CacheConfig contains settings for the geocode result cache
type CacheConfig struct {
	Type          string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	RedisAddr     string        `envconfig:"CACHE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"CACHE_REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"CACHE_REDIS_DB" default:"0"`
}

// SchedulerConfig contains settings for the durable reminder queue
type SchedulerConfig struct {
	PollSpec        string        `envconfig:"SCHEDULER_POLL_SPEC" default:"@every 1m"`
	ReconcileSpec   string        `envconfig:"SCHEDULER_RECONCILE_SPEC" default:"@every 6h"`
	MaxSendAttempts int           `envconfig:"SCHEDULER_MAX_SEND_ATTEMPTS" default:"3"`
	SendTimeout     time.Duration `envconfig:"SCHEDULER_SEND_TIMEOUT" default:"10s"`
}

// NotifierConfig contains settings for notification presentation
type NotifierConfig struct {
	Type       string `envconfig:"NOTIFIER_TYPE" default:"log"`
	WebhookURL string `envconfig:"NOTIFIER_WEBHOOK_URL" default:""`
}

// DatasetConfig contains settings for the immutable event dataset
type DatasetConfig struct {
	EventsPath      string `envconfig:"DATASET_EVENTS_PATH" default:"assets/ekadashi_data.json"`
	MessagesPath    string `envconfig:"DATASET_MESSAGES_PATH" default:"assets/messages.json"`
	DefaultLanguage string `envconfig:"DATASET_DEFAULT_LANGUAGE" default:"en"`
}

// LoadConfig loads and validates application configuration from environment variables
func LoadConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.NewConfigurationError("error processing config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Location.Validate(); err != nil {
		return err
	}
	if err := c.Geocode.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Notifier.Validate(); err != nil {
		return err
	}
	if err := c.Dataset.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return errors.NewConfigurationError("SERVER_PORT must be between 1 and 65535", nil)
	}
	return nil
}

// ValidateSSLMode validates the SSL mode configuration
func (d *DatabaseConfig) ValidateSSLMode() error {
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	for _, mode := range validSSLModes {
		if d.SSLMode == mode {
			return nil
		}
	}
	return errors.NewConfigurationError(
		fmt.Sprintf("DB_SSL_MODE must be one of: %s", strings.Join(validSSLModes, ", ")), nil)
}

// Validate checks database configuration
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.Path == "" {
			return errors.NewConfigurationError("DB_PATH cannot be empty for the sqlite driver", nil)
		}
		return nil
	case "postgres":
		if d.Host == "" {
			return errors.NewConfigurationError("DB_HOST cannot be empty", nil)
		}
		if d.Port < 1 || d.Port > 65535 {
			return errors.NewConfigurationError("DB_PORT must be between 1 and 65535", nil)
		}
		if d.User == "" {
			return errors.NewConfigurationError("DB_USER cannot be empty", nil)
		}
		if d.Name == "" {
			return errors.NewConfigurationError("DB_NAME cannot be empty", nil)
		}
		return d.ValidateSSLMode()
	}
	return errors.NewConfigurationError("DB_DRIVER must be sqlite or postgres", nil)
}

// Validate checks location resolution configuration
func (l *LocationConfig) Validate() error {
	if l.FreshFixTimeout < time.Second {
		return errors.NewConfigurationError("LOCATION_FRESH_FIX_TIMEOUT must be at least 1 second", nil)
	}
	if l.ActiveTimeout < time.Second {
		return errors.NewConfigurationError("LOCATION_ACTIVE_TIMEOUT must be at least 1 second", nil)
	}
	if l.FreshnessWindow < time.Minute {
		return errors.NewConfigurationError("LOCATION_FRESHNESS_WINDOW must be at least 1 minute", nil)
	}
	if err := validateOptionalURL("LOCATION_FUSED_AGENT_URL", l.FusedAgentURL); err != nil {
		return err
	}
	return validateOptionalURL("LOCATION_LEGACY_AGENT_URL", l.LegacyAgentURL)
}

// Validate checks reverse geocoding configuration
func (g *GeocodeConfig) Validate() error {
	if g.Timeout < time.Second {
		return errors.NewConfigurationError("GEOCODE_TIMEOUT must be at least 1 second", nil)
	}
	if g.FallbackRadius <= 0 {
		return errors.NewConfigurationError("GEOCODE_FALLBACK_RADIUS_KM must be positive", nil)
	}
	return validateOptionalURL("GEOCODE_BASE_URL", g.BaseURL)
}

// Validate checks cache configuration
func (c *CacheConfig) Validate() error {
	if c.Type != "memory" && c.Type != "redis" {
		return errors.NewConfigurationError("CACHE_TYPE must be memory or redis", nil)
	}
	if c.TTL < time.Minute {
		return errors.NewConfigurationError("CACHE_TTL must be at least 1 minute", nil)
	}
	if c.Type == "redis" && c.RedisAddr == "" {
		return errors.NewConfigurationError("CACHE_REDIS_ADDR cannot be empty", nil)
	}
	return nil
}

// Validate checks scheduler configuration
func (s *SchedulerConfig) Validate() error {
	if s.PollSpec == "" {
		return errors.NewConfigurationError("SCHEDULER_POLL_SPEC cannot be empty", nil)
	}
	if s.ReconcileSpec == "" {
		return errors.NewConfigurationError("SCHEDULER_RECONCILE_SPEC cannot be empty", nil)
	}
	if s.MaxSendAttempts < 1 {
		return errors.NewConfigurationError("SCHEDULER_MAX_SEND_ATTEMPTS must be at least 1", nil)
	}
	if s.SendTimeout < time.Second {
		return errors.NewConfigurationError("SCHEDULER_SEND_TIMEOUT must be at least 1 second", nil)
	}
	return nil
}

// Validate checks notifier configuration
func (n *NotifierConfig) Validate() error {
	if n.Type != "log" && n.Type != "webhook" {
		return errors.NewConfigurationError("NOTIFIER_TYPE must be log or webhook", nil)
	}
	if n.Type == "webhook" {
		if n.WebhookURL == "" {
			return errors.NewConfigurationError("NOTIFIER_WEBHOOK_URL is required for the webhook notifier", nil)
		}
		return validateOptionalURL("NOTIFIER_WEBHOOK_URL", n.WebhookURL)
	}
	return nil
}

// Validate checks dataset configuration
func (d *DatasetConfig) Validate() error {
	if d.EventsPath == "" {
		return errors.NewConfigurationError("DATASET_EVENTS_PATH cannot be empty", nil)
	}
	if d.MessagesPath == "" {
		return errors.NewConfigurationError("DATASET_MESSAGES_PATH cannot be empty", nil)
	}
	if d.DefaultLanguage == "" {
		return errors.NewConfigurationError("DATASET_DEFAULT_LANGUAGE cannot be empty", nil)
	}
	return nil
}

func validateOptionalURL(name, value string) error {
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return errors.NewConfigurationError(fmt.Sprintf("%s must start with http:// or https://", name), nil)
	}
	return nil
}
