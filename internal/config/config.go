// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Driver names accepted by browser.driver.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// Config holds the entire agent configuration. It is populated by viper from
// (in increasing precedence) defaults, an optional config.yaml, TRAFFICLIGHT_*
// environment variables, and command-line flags.
type Config struct {
	Control ControlConfig `mapstructure:"control" yaml:"control"`
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
}

// ControlConfig describes how to reach the trafficlight control server.
type ControlConfig struct {
	// URL is the base URL of the control server (TRAFFICLIGHT_CONTROL_URL).
	URL string `mapstructure:"url" yaml:"url"`
	// RequestTimeout bounds each register/poll/respond HTTP round trip.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// AppConfig describes the web application under test.
type AppConfig struct {
	// URL is the base URL of the element-web deployment (TRAFFICLIGHT_APP_URL).
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds browser launch and interaction settings.
type BrowserConfig struct {
	// Driver selects the automation back end: "chromedp" or "rod".
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	// ElementTimeout is the implicit per-DOM-operation wait. Exceeding it is
	// surfaced as an element-not-found failure.
	ElementTimeout time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	// NavigationTimeout bounds full page loads.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// Args are extra command line switches passed to the browser process.
	Args []string `mapstructure:"args" yaml:"args"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// SetDefaults registers every configuration default on the given viper
// instance. The control and app URLs match the documented defaults of the
// trafficlight protocol.
func SetDefaults(v *viper.Viper) {
	// -- Control server --
	v.SetDefault("control.url", "http://127.0.0.1:5000")
	v.SetDefault("control.request_timeout", "30s")

	// -- Application under test --
	v.SetDefault("app.url", "http://127.0.0.1:8080")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.element_timeout", "15s")
	v.SetDefault("browser.navigation_timeout", "90s")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "trafficlight-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")
}

// NewDefaultConfig returns a Config populated with defaults only. Intended for
// tests and for fallback paths before viper has been initialized.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// NewConfigFromViper unmarshals and validates a Config from a viper instance.
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
	if c.Control.URL == "" {
		return fmt.Errorf("control.url is a required configuration field")
	}
	if c.App.URL == "" {
		return fmt.Errorf("app.url is a required configuration field")
	}
	switch c.Browser.Driver {
	case DriverChromedp, DriverRod:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverRod, c.Browser.Driver)
	}
	if c.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser.element_timeout must be a positive duration")
	}
	if c.Control.RequestTimeout <= 0 {
		return fmt.Errorf("control.request_timeout must be a positive duration")
	}
	return nil
}
