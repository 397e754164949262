package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/shelfkeep/pkg/errors"
)

// SetValue sets a configuration value by key.
// Supported keys:
//   - manifest_path: string - path to the manifest file
//   - download_root: string - root directory of the local library
//   - session_path: string - path to the stored session token
//   - base_url: string - base URL of the remote catalog
//   - user_agent: string - User-Agent header for catalog requests
//   - rate_limit: float - catalog requests per second (0 disables)
//   - http_timeout: duration - HTTP request timeout (e.g. 30s)
//   - retry_count: int - fetch attempts per file
//   - retry_backoff: duration - base delay between retries
//   - os_list: comma-separated OS tags
//   - language_list: comma-separated language tags
//   - hooks_dir: string - directory holding hook scripts
//   - log_level: string - logging level (debug, info, warn, error)
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "manifest_path":
		c.Settings.ManifestPath = value
	case "download_root":
		c.Settings.DownloadRoot = value
	case "session_path":
		c.Settings.SessionPath = value
	case "base_url":
		c.Settings.BaseURL = value
	case "user_agent":
		c.Settings.UserAgent = value
	case "rate_limit":
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value for %s: %s", key, value)
		}
		c.Settings.RateLimit = floatVal
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		c.Settings.HTTPTimeout = d
	case "retry_count":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		c.Settings.RetryCount = intVal
	case "retry_backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		c.Settings.RetryBackoff = d
	case "os_list":
		c.Settings.OSList = splitList(value)
	case "language_list":
		c.Settings.LanguageList = splitList(value)
	case "hooks_dir":
		c.Settings.HooksDir = value
	case "log_level":
		c.Settings.LogLevel = value
	default:
		return errors.Wrapf(errors.ErrConfigKey, "%s", key)
	}
	return nil
}

// GetValue returns a configuration value by key as a string.
func (c *Config) GetValue(key string) (string, error) {
	switch key {
	case "manifest_path":
		return c.Settings.ManifestPath, nil
	case "download_root":
		return c.Settings.DownloadRoot, nil
	case "session_path":
		return c.Settings.SessionPath, nil
	case "base_url":
		return c.Settings.BaseURL, nil
	case "user_agent":
		return c.Settings.UserAgent, nil
	case "rate_limit":
		return strconv.FormatFloat(c.Settings.RateLimit, 'f', -1, 64), nil
	case "http_timeout":
		return c.Settings.HTTPTimeout.String(), nil
	case "retry_count":
		return strconv.Itoa(c.Settings.RetryCount), nil
	case "retry_backoff":
		return c.Settings.RetryBackoff.String(), nil
	case "os_list":
		return strings.Join(c.Settings.OSList, ","), nil
	case "language_list":
		return strings.Join(c.Settings.LanguageList, ","), nil
	case "hooks_dir":
		return c.Settings.HooksDir, nil
	case "log_level":
		return c.Settings.LogLevel, nil
	default:
		return "", errors.Wrapf(errors.ErrConfigKey, "%s", key)
	}
}

// ToMap returns all settings keyed by their yaml names. This is useful for
// displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	settingsValue := reflect.ValueOf(c.Settings)
	settingsType := settingsValue.Type()

	for i := 0; i < settingsValue.NumField(); i++ {
		field := settingsType.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlKey := strings.Split(yamlTag, ",")[0]

		fieldValue := settingsValue.Field(i)
		var strValue string
		switch v := fieldValue.Interface().(type) {
		case time.Duration:
			strValue = v.String()
		case string:
			strValue = v
		case float64:
			strValue = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			strValue = strconv.Itoa(v)
		case []string:
			strValue = strings.Join(v, ",")
		default:
			strValue = fmt.Sprintf("%v", v)
		}

		result[yamlKey] = strValue
	}

	return result
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
