package cli

import (
	"fmt"
	"net/url"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/auth"
	"github.com/glorpus-work/shelfkeep/pkg/catalog"
	"github.com/glorpus-work/shelfkeep/pkg/config"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/hook"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

// loadConfig loads the configuration from the --config path or the default
// location and applies flag overrides.
func loadConfig() (*config.Config, error) {
	configPath := getConfigPath()
	if configPath == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	logger.InitLogger(cfg.Settings.LogLevel)

	return cfg, nil
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// openManifest loads the manifest named by the config. A missing file yields
// an empty manifest.
func openManifest(cfg *config.Config) (*manifest.Manifest, error) {
	m, err := manifest.Load(cfg.Settings.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return m, nil
}

// newCatalogClient builds an authenticated catalog client from the config
// and the stored session.
func newCatalogClient(cfg *config.Config) (catalog.Client, error) {
	if cfg.Settings.BaseURL == "" {
		return nil, errors.Wrap(errors.ErrConfigValidation, "base_url is not configured")
	}
	baseURL, err := url.Parse(cfg.Settings.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfigValidation, "base_url is not a valid URL: %s", cfg.Settings.BaseURL)
	}

	session, err := auth.LoadSession(cfg.Settings.SessionPath)
	if err != nil {
		return nil, err
	}

	client := catalog.NewHTTPClient(baseURL, session.Authenticator(), cfg.Settings.HTTPTimeout, cfg.Settings.RateLimit)
	return client, nil
}

// loadHooks builds a hook manager populated from the configured hooks
// directory. Without a configured directory the manager stays empty.
func loadHooks(cfg *config.Config) (hook.HookManager, error) {
	manager := hook.NewHookManager()
	if cfg.Settings.HooksDir == "" {
		return manager, nil
	}
	if err := hook.LoadHooksFromDir(manager, cfg.Settings.HooksDir); err != nil {
		return nil, err
	}
	return manager, nil
}
