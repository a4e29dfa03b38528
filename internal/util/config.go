package util

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultSettingsFile is read when present and no --config path is given.
const DefaultSettingsFile = "faqscorer.yaml"

// Config holds runtime settings and flags.
type Config struct {
	BackendURL    string
	BackendSource Source

	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
	RedisAddr string

	LogLevel string
	LogFile  string
	Theme    string

	HistoryDSN     string
	HistoryEnabled bool

	WebListen string
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		BackendURL:     DefaultBackendURL,
		BackendSource:  SourceDefault,
		Timeout:        600 * time.Second,
		CacheTTL:       60 * time.Second,
		CacheSize:      64,
		LogLevel:       "info",
		LogFile:        "faqscorer.log",
		Theme:          "catppuccin",
		HistoryDSN:     "",
		HistoryEnabled: true,
		WebListen:      ":8501",
	}
}

type settingsFile struct {
	Timeout time.Duration `koanf:"timeout"`
	Cache   struct {
		TTL       time.Duration `koanf:"ttl"`
		Size      int           `koanf:"size"`
		RedisAddr string        `koanf:"redis_addr"`
	} `koanf:"cache"`
	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`
	Theme   string `koanf:"theme"`
	History struct {
		DSN     string `koanf:"dsn"`
		Enabled *bool  `koanf:"enabled"`
	} `koanf:"history"`
	Web struct {
		Listen string `koanf:"listen"`
	} `koanf:"web"`
}

// LoadSettings overlays the YAML settings file at path on cfg. An empty path
// falls back to DefaultSettingsFile, which may be absent.
func LoadSettings(cfg Config, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSettingsFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read settings from %q: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return cfg, fmt.Errorf("failed to load settings from %q: %w", path, err)
	}
	var s settingsFile
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("failed to parse settings from %q: %w", path, err)
	}

	if s.Timeout > 0 {
		cfg.Timeout = s.Timeout
	}
	if s.Cache.TTL > 0 {
		cfg.CacheTTL = s.Cache.TTL
	}
	if s.Cache.Size > 0 {
		cfg.CacheSize = s.Cache.Size
	}
	if s.Cache.RedisAddr != "" {
		cfg.RedisAddr = s.Cache.RedisAddr
	}
	if s.Log.Level != "" {
		cfg.LogLevel = s.Log.Level
	}
	if s.Log.File != "" {
		cfg.LogFile = s.Log.File
	}
	if s.Theme != "" {
		cfg.Theme = s.Theme
	}
	if s.History.DSN != "" {
		cfg.HistoryDSN = s.History.DSN
	}
	if s.History.Enabled != nil {
		cfg.HistoryEnabled = *s.History.Enabled
	}
	if s.Web.Listen != "" {
		cfg.WebListen = s.Web.Listen
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if err := ValidateBackendURL(c.BackendURL); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return NewConfigError("timeout must be positive")
	}
	if c.CacheTTL <= 0 {
		return NewConfigError("cache.ttl must be positive")
	}
	if c.CacheSize < 1 {
		return NewConfigError("cache.size must be at least 1")
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

func (e *ConfigError) Error() string {
	return e.message
}
