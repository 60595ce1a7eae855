// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for a recording session.
type Config struct {
	// Input/Output
	URL        string `yaml:"url"`
	OutputPath string `yaml:"output"`

	// Video
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Scale  float64 `yaml:"scale"`

	// Recording
	DurationMs int    `yaml:"duration_ms"`
	Quality    int    `yaml:"screencast_quality"`
	Browser    string `yaml:"browser"` // "chromedp" or "playwright"

	// Browser options
	Headless          bool   `yaml:"headless"`
	ChromePath        string `yaml:"chrome_path"`
	UserAgent         string `yaml:"user_agent"`
	IgnoreHTTPSErrors bool   `yaml:"ignore_https_errors"`
	ProxyServer       string `yaml:"proxy_server"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Width:      1280,
		Height:     720,
		DurationMs: 10000,
		Quality:    80,
		Browser:    "chromedp",
		Headless:   true,
		LogLevel:   "info",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("dimensions must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("dimensions must be even, got %dx%d", c.Width, c.Height)
	}
	if c.Browser != "chromedp" && c.Browser != "playwright" {
		return fmt.Errorf("unknown browser %q (chromedp or playwright)", c.Browser)
	}
	if c.DurationMs <= 0 {
		return fmt.Errorf("duration must be positive, got %d ms", c.DurationMs)
	}
	return nil
}
