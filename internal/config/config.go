package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent is sent with session and balance requests unless the
// copied request carries its own.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Alert formats.
const (
	FormatSlack   = "slack"
	FormatWebhook = "webhook"
)

// Config holds all credit monitor configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// FetchConfig defines how the balance is read.
type FetchConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SessionURL string        `mapstructure:"session_url"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// SchedulerConfig defines scheduler settings.
type SchedulerConfig struct {
	RecoveryInterval time.Duration `mapstructure:"recovery_interval"`
}

// AlertsConfig defines how alerts are delivered to the configured channel.
type AlertsConfig struct {
	Format        string `mapstructure:"format"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

// MonitorConfig points at an optional YAML monitor configuration that is
// loaded on start and reloaded when it changes.
type MonitorConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".ccm"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".ccm", "monitor.db"))
	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.retry_delay", "5s")
	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.session_url", "https://console.anthropic.com/settings/billing")
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("scheduler.recovery_interval", "5m")
	v.SetDefault("alerts.format", FormatSlack)
	v.SetDefault("alerts.webhook_secret", "")
	v.SetDefault("alerts.rate_per_minute", 30)
	v.SetDefault("monitor.file", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("CCM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the monitor cannot run with.
func (c *Config) Validate() error {
	switch c.Alerts.Format {
	case FormatSlack, FormatWebhook:
	default:
		return fmt.Errorf("alerts.format must be %q or %q, got %q", FormatSlack, FormatWebhook, c.Alerts.Format)
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be positive, got %d", c.Fetch.MaxRetries)
	}
	if c.Fetch.RetryDelay < 0 {
		return fmt.Errorf("fetch.retry_delay must not be negative")
	}
	if c.Scheduler.RecoveryInterval <= 0 {
		return fmt.Errorf("scheduler.recovery_interval must be positive")
	}
	return nil
}
