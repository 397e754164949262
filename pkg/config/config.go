// Package config provides configuration management for shelfkeep. It handles
// loading, validating, and saving application settings. Configuration lives
// in a YAML file with sensible defaults, so a missing file is not an error.
package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Library locations
	ManifestPath string `yaml:"manifest_path,omitempty"`
	DownloadRoot string `yaml:"download_root,omitempty"`
	SessionPath  string `yaml:"session_path,omitempty"`

	// Remote service
	BaseURL   string  `yaml:"base_url,omitempty"`
	UserAgent string  `yaml:"user_agent,omitempty"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables limiting

	// Network settings
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	RetryCount   int           `yaml:"retry_count"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// Default file selection
	OSList       []string `yaml:"os_list,omitempty"`
	LanguageList []string `yaml:"language_list,omitempty"`

	// Hooks
	HooksDir string `yaml:"hooks_dir,omitempty"`

	// Output settings
	LogLevel string `yaml:"log_level"` // error, warn, info, debug
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRetryCount is the default number of fetch attempts.
	DefaultRetryCount = 3

	// DefaultRetryBackoff is the base delay between retries.
	DefaultRetryBackoff = 5 * time.Second

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir, err := getUserDataDir()
	if err != nil {
		dataDir = "."
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}

	return &Config{
		Settings: Settings{
			ManifestPath: filepath.Join(dataDir, "shelfkeep", "manifest.json"),
			DownloadRoot: filepath.Join(dataDir, "shelfkeep", "library"),
			SessionPath:  filepath.Join(configDir, "shelfkeep", "session.yaml"),
			HTTPTimeout:  DefaultHTTPTimeout,
			RetryCount:   DefaultRetryCount,
			RetryBackoff: DefaultRetryBackoff,
			LogLevel:     "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves configuration to a file, replacing it atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to encode config")
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to replace config file")
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	s := c.Settings

	if s.HTTPTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "http_timeout cannot be negative")
	}
	if s.RetryCount < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "retry_count must be at least 1")
	}
	if s.RetryBackoff < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "retry_backoff cannot be negative")
	}
	if s.RateLimit < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "rate_limit cannot be negative")
	}
	if s.BaseURL != "" {
		parsed, err := url.Parse(s.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return errors.Wrapf(errors.ErrConfigValidation, "base_url is not a valid URL: %s", s.BaseURL)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.Wrapf(errors.ErrConfigValidation, "invalid log level: %s", s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "shelfkeep", "config.yaml"), nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.ManifestPath == "" {
		c.Settings.ManifestPath = defaults.Settings.ManifestPath
	}
	if c.Settings.DownloadRoot == "" {
		c.Settings.DownloadRoot = defaults.Settings.DownloadRoot
	}
	if c.Settings.SessionPath == "" {
		c.Settings.SessionPath = defaults.Settings.SessionPath
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.RetryCount == 0 {
		c.Settings.RetryCount = defaults.Settings.RetryCount
	}
	if c.Settings.RetryBackoff == 0 {
		c.Settings.RetryBackoff = defaults.Settings.RetryBackoff
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}

func getUserDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == "linux" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return filepath.Join(homeDir, ".local", "share"), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return configDir, nil
}
