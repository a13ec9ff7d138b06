package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"invoicefetcher/internal/logger"
)

// DefaultConfigDir is the directory holding the configuration file,
// relative to the user's home directory.
const DefaultConfigDir = ".invoice-fetcher"

// DefaultConfigFile is the configuration file name inside DefaultConfigDir.
const DefaultConfigFile = "config.yaml"

type Config struct {
	// DownloadDir is the root of the local invoice archive.
	DownloadDir string

	// DateRangeDays is the default lookback window for a sync run.
	DateRangeDays int

	// Portal Configuration
	PortalBaseURL        string
	PortalEmail          string
	PortalTimeoutSeconds int

	// TeamDirs maps a team name to a download directory override.
	TeamDirs map[string]string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration file (if present) and applies environment
// overrides with the INVOICE_FETCHER_ prefix. A missing config file is not
// an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	v.SetDefault("download_dir", filepath.Join(home, "Downloads", "invoices"))
	v.SetDefault("date_range_days", 90)
	v.SetDefault("portal.base_url", "https://business.example.com")
	v.SetDefault("portal.timeout_seconds", 30)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.time_format", "2006-01-02T15:04:05Z07:00")
	v.SetDefault("logging.output", "stderr")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(filepath.Join(home, DefaultConfigDir, DefaultConfigFile))
	}

	v.SetEnvPrefix("INVOICE_FETCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	config := &Config{
		DownloadDir:          v.GetString("download_dir"),
		DateRangeDays:        v.GetInt("date_range_days"),
		PortalBaseURL:        v.GetString("portal.base_url"),
		PortalEmail:          v.GetString("portal.email"),
		PortalTimeoutSeconds: v.GetInt("portal.timeout_seconds"),
		TeamDirs:             map[string]string{},
		LogLevel:             v.GetString("logging.level"),
		LogFormat:            v.GetString("logging.format"),
		LogTimeFormat:        v.GetString("logging.time_format"),
		LogOutput:            v.GetString("logging.output"),
	}

	for team := range v.GetStringMap("teams") {
		if dir := v.GetString("teams." + team + ".download_dir"); dir != "" {
			config.TeamDirs[team] = dir
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir is required")
	}
	if c.DateRangeDays <= 0 {
		return fmt.Errorf("date_range_days must be positive, got %d", c.DateRangeDays)
	}
	if c.PortalBaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	return nil
}

// DownloadDirFor returns the archive root for the given team, honoring a
// per-team override when configured.
func (c *Config) DownloadDirFor(team string) string {
	if dir, ok := c.TeamDirs[team]; ok {
		return dir
	}
	return c.DownloadDir
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// WriteDefault creates a default configuration file at path, creating
// parent directories as needed. Credentials are never written here; they
// live in the system keyring.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	content := fmt.Sprintf(`download_dir: %s
date_range_days: 90

portal:
  base_url: https://business.example.com
  email: ""
  timeout_seconds: 30

logging:
  level: info
  format: console
  output: stderr
`, filepath.Join(home, "Downloads", "invoices"))

	return os.WriteFile(path, []byte(content), 0o644)
}
