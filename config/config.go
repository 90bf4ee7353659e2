// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the laptop smart power manager.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/ImaSet/laptop-smart-power-manager/pkg/errors"
	"github.com/ImaSet/laptop-smart-power-manager/pkg/util"
	"github.com/ImaSet/laptop-smart-power-manager/power"
)

// Config represents the application configuration
type Config struct {
	Plug          PlugConfig          `yaml:"plug"`
	Battery       BatteryConfig       `yaml:"battery"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// PlugConfig identifies the smart plug the controller drives
type PlugConfig struct {
	Model   string `yaml:"model" validate:"required"`
	Address string `yaml:"address" validate:"required,ip|hostname_rfc1123"`
}

// BatteryConfig holds the charge band the controller keeps the battery in
type BatteryConfig struct {
	Low  int `yaml:"low" validate:"gte=0,lte=100,ltfield=High"`
	High int `yaml:"high" validate:"gte=0,lte=100"`
}

// MonitoringConfig holds the controller loop timings
type MonitoringConfig struct {
	RefreshTime        time.Duration `yaml:"refresh_time" validate:"gt=0"`
	StateChangeTimeout time.Duration `yaml:"state_change_timeout" validate:"gt=0"`
}

// MarshalYAML writes durations in their human-readable form instead of nanoseconds
func (m MonitoringConfig) MarshalYAML() (interface{}, error) {
	return struct {
		RefreshTime        string `yaml:"refresh_time"`
		StateChangeTimeout string `yaml:"state_change_timeout"`
	}{
		RefreshTime:        m.RefreshTime.String(),
		StateChangeTimeout: m.StateChangeTimeout.String(),
	}, nil
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

// MetricsConfig holds the optional Prometheus endpoint settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

// NotificationsConfig holds the optional failure notification channels
type NotificationsConfig struct {
	Slack SlackConfig `yaml:"slack"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// SlackConfig holds Slack webhook settings
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// MQTTConfig holds MQTT broker settings
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker" validate:"omitempty,uri"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

var validate = newValidator()

// newValidator builds the struct validator reporting fields under their yaml
// tag names, so constraint violations name the paths users see in the file.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns a configuration with every field at its default. The plug
// section stays empty; it has no meaningful default and must be configured.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	data, err := util.ReadFileSafely(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides and defaults
	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	// Validate configuration
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to a YAML file, creating the directory if needed
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if model := os.Getenv("LSPM_PLUG_MODEL"); model != "" {
		c.Plug.Model = model
	}
	if addr := os.Getenv("LSPM_PLUG_ADDRESS"); addr != "" {
		c.Plug.Address = addr
	}
	if low := os.Getenv("LSPM_BATTERY_LOW"); low != "" {
		value, parseErr := strconv.Atoi(low)
		if parseErr == nil {
			c.Battery.Low = value
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse LSPM_BATTERY_LOW '%s': %v\n", low, parseErr)
		}
	}
	if high := os.Getenv("LSPM_BATTERY_HIGH"); high != "" {
		value, parseErr := strconv.Atoi(high)
		if parseErr == nil {
			c.Battery.High = value
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse LSPM_BATTERY_HIGH '%s': %v\n", high, parseErr)
		}
	}
	if interval := os.Getenv("LSPM_REFRESH_TIME"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Monitoring.RefreshTime = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse LSPM_REFRESH_TIME '%s': %v\n", interval, parseErr)
		}
	}
	if timeout := os.Getenv("LSPM_STATE_CHANGE_TIMEOUT"); timeout != "" {
		duration, parseErr := time.ParseDuration(timeout)
		if parseErr == nil {
			c.Monitoring.StateChangeTimeout = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse LSPM_STATE_CHANGE_TIMEOUT '%s': %v\n", timeout, parseErr)
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("LSPM_METRICS_ADDR"); addr != "" {
		c.Metrics.ListenAddr = addr
	}
	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		c.Notifications.Slack.WebhookURL = webhook
	}
	if broker := os.Getenv("LSPM_MQTT_BROKER"); broker != "" {
		c.Notifications.MQTT.Broker = broker
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Battery.Low == 0 {
		c.Battery.Low = power.DefaultBatteryLow
	}
	if c.Battery.High == 0 {
		c.Battery.High = power.DefaultBatteryHigh
	}
	if c.Monitoring.RefreshTime == 0 {
		c.Monitoring.RefreshTime = power.DefaultRefreshTime
	}
	if c.Monitoring.StateChangeTimeout == 0 {
		c.Monitoring.StateChangeTimeout = power.DefaultStateChangeTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = "127.0.0.1:8080"
	}
	if c.Notifications.MQTT.Topic == "" {
		c.Notifications.MQTT.Topic = "lspm/events"
	}
	if c.Notifications.MQTT.ClientID == "" {
		c.Notifications.MQTT.ClientID = "lspm"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperrors.NewConfigError(yamlPath(fe.Namespace()), fmt.Sprint(fe.Value()), fmt.Errorf("failed %q constraint", fe.Tag()))
		}
		return err
	}
	return nil
}

// yamlPath strips the root struct name from a validator namespace
// ("Config.battery.low" becomes "battery.low").
func yamlPath(namespace string) string {
	return strings.TrimPrefix(namespace, "Config.")
}

// DefaultDir returns the per-user application directory (~/.lspm)
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".lspm"), nil
}

// DefaultPath returns the default configuration file location
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultLogPath returns the default log file location
func DefaultLogPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "app.log"), nil
}
