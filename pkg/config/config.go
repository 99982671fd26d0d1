package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the scraper reads.
const EnvPrefix = "IMGSCRAPER_"

// Engine names accepted by BrowserConfig.Engine.
const (
	EngineRod    = "rod"
	EngineStatic = "static"
)

// Config holds all configuration options for the image scraper
type Config struct {
	Browser       BrowserConfig            `yaml:"browser" json:"browser"`
	Download      DownloadConfig           `yaml:"download" json:"download"`
	Output        OutputConfig             `yaml:"output" json:"output"`
	RateLimit     RateLimitConfig          `yaml:"rate_limit" json:"rate_limit"`
	Retry         RetryConfig              `yaml:"retry" json:"retry"`
	Notifications NotificationConfig       `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig            `yaml:"logging" json:"logging"`
	Profiles      map[string]ProfileConfig `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// BrowserConfig controls how pages are opened
type BrowserConfig struct {
	// Engine is "rod" (headless Chrome) or "static" (plain HTTP + HTML).
	Engine            string        `yaml:"engine" json:"engine"`
	RemoteURL         string        `yaml:"remote_url" json:"remote_url"`
	Headless          bool          `yaml:"headless" json:"headless"`
	Stealth           bool          `yaml:"stealth" json:"stealth"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	BlockResources    []string      `yaml:"block_resources" json:"block_resources"`
	RespectRobots     bool          `yaml:"respect_robots" json:"respect_robots"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int               `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration     `yaml:"download_timeout" json:"download_timeout"`
	DryRun              bool              `yaml:"dry_run" json:"dry_run"`
	Headers             map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// RateLimitConfig caps image requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig applies to image downloads only; page waits never retry.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// ProfileConfig describes a site profile in the config file. Durations
// left at zero keep the strategy defaults.
type ProfileConfig struct {
	Strategy  string            `yaml:"strategy" json:"strategy"`
	Selectors map[string]string `yaml:"selectors" json:"selectors"`
	Normalize string            `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	Options   ProfileOptions    `yaml:"options,omitempty" json:"options,omitempty"`
}

// ProfileOptions overrides strategy timing.
type ProfileOptions struct {
	ImageTimeout      time.Duration `yaml:"image_timeout,omitempty" json:"image_timeout,omitempty"`
	PageChangeTimeout time.Duration `yaml:"page_change_timeout,omitempty" json:"page_change_timeout,omitempty"`
	DownloadDelay     time.Duration `yaml:"download_delay,omitempty" json:"download_delay,omitempty"`
	ScrollStep        int           `yaml:"scroll_step,omitempty" json:"scroll_step,omitempty"`
	ScrollInterval    time.Duration `yaml:"scroll_interval,omitempty" json:"scroll_interval,omitempty"`
	MaxWait           time.Duration `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
	LoadMoreWait      time.Duration `yaml:"load_more_wait,omitempty" json:"load_more_wait,omitempty"`
	BottomWait        time.Duration `yaml:"bottom_wait,omitempty" json:"bottom_wait,omitempty"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Engine:            EngineRod,
			Headless:          true,
			Stealth:           true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			NavigationTimeout: 30 * time.Second,
			RespectRobots:     false,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides fields from IMGSCRAPER_* variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s%s must be a positive integer, got %q", EnvPrefix, name, v))
			return
		}
		*dst = n
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("ENGINE", &c.Browser.Engine)
	setString("REMOTE_URL", &c.Browser.RemoteURL)
	setString("USER_AGENT", &c.Browser.UserAgent)
	setBool("HEADLESS", &c.Browser.Headless)
	setBool("RESPECT_ROBOTS", &c.Browser.RespectRobots)
	setString("OUTPUT_DIR", &c.Output.BaseDirectory)
	setInt("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	setBool("NOTIFICATIONS_ENABLED", &c.Notifications.Enabled)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path
// searches the default locations and is not an error when none exist.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile returns the first existing default config location.
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".imgscraper.yaml",
		".imgscraper.yml",
		filepath.Join(home, ".config", "imgscraper", "config.yaml"),
		filepath.Join(home, ".config", "imgscraper", "config.yml"),
		filepath.Join(home, ".imgscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Browser.Engine {
	case EngineRod, EngineStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown browser engine %q (want %s or %s)", c.Browser.Engine, EngineRod, EngineStatic))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, fmt.Errorf("invalid notification type %q", c.Notifications.NotificationType))
	}

	for key, p := range c.Profiles {
		if p.Strategy == "" {
			errs = append(errs, fmt.Errorf("profile %q: strategy is required", key))
		}
		if len(p.Selectors) == 0 {
			errs = append(errs, fmt.Errorf("profile %q: selectors are required", key))
		}
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies flag values keyed by flag name. Only
// flags the user actually set should be passed in.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["engine"].(string); ok && v != "" {
		c.Browser.Engine = v
	}
	if v, ok := flags["remote-url"].(string); ok && v != "" {
		c.Browser.RemoteURL = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["respect-robots"].(bool); ok {
		c.Browser.RespectRobots = v
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.Browser.UserAgent = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["download-timeout"].(time.Duration); ok && v > 0 {
		c.Download.DownloadTimeout = v
	}
	if v, ok := flags["dry-run"].(bool); ok {
		c.Download.DryRun = v
	}
	if v, ok := flags["overwrite"].(bool); ok {
		c.Output.OverwriteExisting = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment (.env files included) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".imgscraper.env"))
	}

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
