// Package config provides configuration management for page_verify.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/yaml.v3"
)

// Version is the current version of page_verify.
// This is set at build time via ldflags.
var Version = "dev"

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// ErrUnknownDriver is returned by Validate for a driver name that no
// browser backend implements.
var ErrUnknownDriver = errors.New("unknown driver")

// Config holds all configuration options for page_verify.
type Config struct {
	// Target
	TargetURL string `yaml:"target_url" envconfig:"PAGE_VERIFY_URL"`
	Role      string `yaml:"role" envconfig:"PAGE_VERIFY_ROLE"`
	Heading   string `yaml:"heading" envconfig:"PAGE_VERIFY_HEADING"`
	Exact     bool   `yaml:"exact" envconfig:"PAGE_VERIFY_EXACT"`

	// Output
	ScreenshotPath string `yaml:"screenshot_path" envconfig:"PAGE_VERIFY_SCREENSHOT"`
	FullPage       bool   `yaml:"full_page" envconfig:"PAGE_VERIFY_FULL_PAGE"`
	EventsDir      string `yaml:"events_dir" envconfig:"PAGE_VERIFY_EVENTS_DIR"`

	// Browser
	Driver     string `yaml:"driver" envconfig:"PAGE_VERIFY_DRIVER"`
	Headless   bool   `yaml:"headless" envconfig:"PAGE_VERIFY_HEADLESS"`
	ChromePath string `yaml:"chrome_path" envconfig:"PAGE_VERIFY_CHROME"`
	RemotePort string `yaml:"remote_port" envconfig:"PAGE_VERIFY_REMOTE_PORT"`

	// Timing
	NavigateTimeout time.Duration `yaml:"navigate_timeout" envconfig:"PAGE_VERIFY_NAVIGATE_TIMEOUT"`
	VisibleTimeout  time.Duration `yaml:"visible_timeout" envconfig:"PAGE_VERIFY_VISIBLE_TIMEOUT"`
	PollInterval    time.Duration `yaml:"poll_interval" envconfig:"PAGE_VERIFY_POLL_INTERVAL"`

	// Behavior
	LogLevel string `yaml:"log_level" envconfig:"PAGE_VERIFY_LOG_LEVEL"`
	Strict   bool   `yaml:"strict" envconfig:"PAGE_VERIFY_STRICT"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		// Target
		TargetURL: "http://localhost:3000",
		Role:      "heading",
		Heading:   "Know they can pay. Instantly.",
		Exact:     false,

		// Output
		ScreenshotPath: "jules-scratch/verification/verification.png",
		FullPage:       true,
		EventsDir:      "",

		// Browser
		Driver:     DriverChromedp,
		Headless:   true,
		ChromePath: "",
		RemotePort: "",

		// Timing
		NavigateTimeout: 30 * time.Second,
		VisibleTimeout:  5 * time.Second,
		PollInterval:    100 * time.Millisecond,

		// Behavior
		LogLevel: "info",
		Strict:   false,
	}
}

// LoadFromFile reads a YAML config file on top of the defaults.
// Keys missing from the file keep their default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from PAGE_VERIFY_* environment variables.
// Variables that are not set leave the current value untouched. An
// optional lookup function replaces os.LookupEnv.
func (c *Config) ApplyEnv(lookup ...func(string) (string, bool)) error {
	if err := envconfig.Process("", c, lookup...); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return errors.New("target URL is required")
	}
	if c.Role == "" {
		return errors.New("role is required")
	}
	if c.ScreenshotPath == "" {
		return errors.New("screenshot path is required")
	}

	switch c.Driver {
	case DriverChromedp, DriverPlaywright, DriverRod:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}

	if c.RemotePort != "" && c.Driver != DriverChromedp {
		return fmt.Errorf("remote port is only supported by the %s driver", DriverChromedp)
	}

	if c.NavigateTimeout <= 0 {
		return fmt.Errorf("navigate timeout must be positive, got %v", c.NavigateTimeout)
	}
	if c.VisibleTimeout <= 0 {
		return fmt.Errorf("visible timeout must be positive, got %v", c.VisibleTimeout)
	}
	if c.PollInterval <= 0 || c.PollInterval > c.VisibleTimeout {
		return fmt.Errorf("poll interval must be in (0, %v], got %v", c.VisibleTimeout, c.PollInterval)
	}

	return nil
}
