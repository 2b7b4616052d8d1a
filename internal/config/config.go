// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// Interface defines the contract for accessing application configuration.
type Interface interface {
	Logger() LoggerConfig
	Driver() DriverConfig
	Timeouts() TimeoutsConfig
	Registry() RegistryConfig
}

// Config is the root configuration, loaded from pagecraft.yaml, PAGECRAFT_*
// environment variables and flags.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DriverCfg   DriverConfig   `mapstructure:"driver" yaml:"driver"`
	TimeoutsCfg TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
	RegistryCfg RegistryConfig `mapstructure:"registry" yaml:"registry"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Driver() DriverConfig     { return c.DriverCfg }
func (c *Config) Timeouts() TimeoutsConfig { return c.TimeoutsCfg }
func (c *Config) Registry() RegistryConfig { return c.RegistryCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DriverConfig selects and configures the browser driver.
type DriverConfig struct {
	Name              string        `mapstructure:"name" yaml:"name"`
	Browser           string        `mapstructure:"browser" yaml:"browser"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	BinaryPath        string        `mapstructure:"binary_path" yaml:"binary_path"`
	ServicePath       string        `mapstructure:"service_path" yaml:"service_path"`
	ServicePort       int           `mapstructure:"service_port" yaml:"service_port"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// Options converts the section into adapter options.
func (d DriverConfig) Options(logger *zap.Logger) driver.Options {
	return driver.Options{
		Browser:           d.Browser,
		Headless:          d.Headless,
		RemoteURL:         d.RemoteURL,
		BinaryPath:        d.BinaryPath,
		ServicePath:       d.ServicePath,
		ServicePort:       d.ServicePort,
		Args:              append([]string(nil), d.Args...),
		CommandTimeout:    d.CommandTimeout,
		NavigationTimeout: d.NavigationTimeout,
		Logger:            logger,
	}
}

// TimeoutsConfig tunes the page-object waits.
type TimeoutsConfig struct {
	Element           time.Duration `mapstructure:"element" yaml:"element"`
	ElementPoll       time.Duration `mapstructure:"element_poll" yaml:"element_poll"`
	Visibility        time.Duration `mapstructure:"visibility" yaml:"visibility"`
	VisibilityPoll    time.Duration `mapstructure:"visibility_poll" yaml:"visibility_poll"`
	TextEntryAttempts int           `mapstructure:"text_entry_attempts" yaml:"text_entry_attempts"`
	TextEntryPause    time.Duration `mapstructure:"text_entry_pause" yaml:"text_entry_pause"`
	BodyTextLimit     int           `mapstructure:"body_text_limit" yaml:"body_text_limit"`
}

// RegistryConfig controls how page and component classes are registered.
type RegistryConfig struct {
	// Strict rejects a second class for the same URL or selector.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagecraft")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Driver --
	v.SetDefault("driver.name", "chromedp")
	v.SetDefault("driver.headless", true)
	v.SetDefault("driver.service_port", 9515)
	v.SetDefault("driver.command_timeout", "5s")
	v.SetDefault("driver.navigation_timeout", "30s")

	// -- Timeouts --
	v.SetDefault("timeouts.element", "10s")
	v.SetDefault("timeouts.element_poll", "500ms")
	v.SetDefault("timeouts.visibility", "20s")
	v.SetDefault("timeouts.visibility_poll", "1s")
	v.SetDefault("timeouts.text_entry_attempts", 5)
	v.SetDefault("timeouts.text_entry_pause", "200ms")
	v.SetDefault("timeouts.body_text_limit", 1000)

	// -- Registry --
	v.SetDefault("registry.strict", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.DriverCfg.Name == "" {
		return fmt.Errorf("driver.name is a required configuration field")
	}
	if c.DriverCfg.ServicePort < 0 || c.DriverCfg.ServicePort > 65535 {
		return fmt.Errorf("driver.service_port must be between 0 and 65535")
	}
	if c.DriverCfg.CommandTimeout < 0 || c.DriverCfg.NavigationTimeout < 0 {
		return fmt.Errorf("driver timeouts must not be negative")
	}
	if err := c.TimeoutsCfg.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the wait settings. Zero means the built-in default.
func (t *TimeoutsConfig) Validate() error {
	for name, d := range map[string]time.Duration{
		"element":          t.Element,
		"element_poll":     t.ElementPoll,
		"visibility":       t.Visibility,
		"visibility_poll":  t.VisibilityPoll,
		"text_entry_pause": t.TextEntryPause,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if t.TextEntryAttempts < 0 {
		return fmt.Errorf("text_entry_attempts must not be negative")
	}
	if t.BodyTextLimit < 0 {
		return fmt.Errorf("body_text_limit must not be negative")
	}
	if t.ElementPoll > 0 && t.Element > 0 && t.ElementPoll > t.Element {
		return fmt.Errorf("element_poll must not exceed element")
	}
	return nil
}
