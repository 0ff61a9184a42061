// Package config resolves settings from an optional TOML file, environment
// overrides and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/sermonarc/sermonarc/internal/catalog"
)

const envPrefix = "sermonarc"

// PageSizeMax is the largest page the catalog service accepts.
const PageSizeMax = 100

// Config holds every tunable of the downloader.
type Config struct {
	OutputDir         string   `toml:"output_dir" envconfig:"OUTPUT_DIR"`
	MaxParallel       int      `toml:"max_parallel" envconfig:"MAX_PARALLEL"`
	MaxAttempts       int      `toml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	Quality           string   `toml:"quality" envconfig:"QUALITY"`
	Kind              string   `toml:"kind" envconfig:"KIND"`
	LogLevel          string   `toml:"log_level" envconfig:"LOG_LEVEL"`
	PageSize          int      `toml:"page_size" envconfig:"PAGE_SIZE"`
	HTTPTimeout       Duration `toml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	StalePartsAfter   Duration `toml:"stale_parts_after" envconfig:"STALE_PARTS_AFTER"`
	MetricsAddr       string   `toml:"metrics_addr" envconfig:"METRICS_ADDR"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" envconfig:"DISCORD_WEBHOOK_URL"`
	DatabasePath      string   `toml:"database_path" envconfig:"DATABASE_PATH"`
	CredentialPath    string   `toml:"credential_path" envconfig:"CREDENTIAL_PATH"`
	APIBaseURL        string   `toml:"api_base_url" envconfig:"API_BASE_URL"`
	WebBaseURL        string   `toml:"web_base_url" envconfig:"WEB_BASE_URL"`
}

// Duration wraps time.Duration so TOML and environment values parse from
// strings like "45s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))

	return err
}

// Load resolves the configuration. path points at a TOML file; when empty the
// default location is tried and silently skipped if absent. Environment
// variables (prefix SERMONARC_) override file values, and defaults fill
// whatever is still unset.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
		if path == "" {
			return nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "."
	}

	if c.MaxParallel == 0 {
		c.MaxParallel = 4
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}

	if c.Kind == "" {
		c.Kind = "audio"
	}

	if c.Quality == "" {
		c.Quality = "high"
	}

	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}

	if c.PageSize == 0 {
		c.PageSize = 25
	}

	if c.HTTPTimeout.Duration == 0 {
		c.HTTPTimeout.Duration = 30 * time.Second
	}

	if c.StalePartsAfter.Duration == 0 {
		c.StalePartsAfter.Duration = 24 * time.Hour
	}

	if c.DatabasePath == "" {
		c.DatabasePath = defaultUserPath("history.db")
	}

	if c.CredentialPath == "" {
		c.CredentialPath = defaultUserPath("credential")
	}

	if c.APIBaseURL == "" {
		c.APIBaseURL = catalog.DefaultAPIBaseURL
	}

	if c.WebBaseURL == "" {
		c.WebBaseURL = catalog.DefaultWebBaseURL
	}
}

// Validate rejects values the catalog service or the scheduler cannot work
// with.
func (c *Config) Validate() error {
	switch c.Kind {
	case "audio", "video":
	default:
		return fmt.Errorf("kind %q is not one of audio, video", c.Kind)
	}

	switch c.Quality {
	case "low", "high", "1080p":
	default:
		return fmt.Errorf("quality %q is not one of low, high, 1080p", c.Quality)
	}

	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}

	if c.PageSize < 1 || c.PageSize > PageSizeMax {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", PageSizeMax, c.PageSize)
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfigPath returns the conventional config file location, or empty
// when the user config dir cannot be determined.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "sermonarc", "config.toml")
}

func defaultUserPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}

	return filepath.Join(dir, "sermonarc", name)
}
