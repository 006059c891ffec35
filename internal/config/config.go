package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds jellylink runtime configuration loaded from TOML.
type Config struct {
	Jellyfin JellyfinConfig `toml:"jellyfin"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	UI       UIConfig       `toml:"ui"`
}

// JellyfinConfig describes the media server and how tracks are streamed from it.
type JellyfinConfig struct {
	BaseURL     string `toml:"base_url"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	PasswordEnv string `toml:"password_env"`
	SearchLimit int    `toml:"search_limit"`

	// AudioQuality is ORIGINAL (no transcoding), HIGH, MEDIUM, LOW or a
	// bitrate in kbps such as "256".
	AudioQuality string `toml:"audio_quality"`
	// AudioCodec is only used when AudioQuality is not ORIGINAL.
	AudioCodec string `toml:"audio_codec"`

	// TokenRefreshMinutes of 0 keeps a token until the server rejects it.
	TokenRefreshMinutes int `toml:"token_refresh_minutes"`
	RequestTimeoutMs    int `toml:"request_timeout_ms"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// UIConfig styles terminal output such as the doctor report.
type UIConfig struct {
	Theme   string `toml:"theme"` // default, mono, nocolor
	NoColor bool   `toml:"no_color"`
}

type LoggingConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	File  string `toml:"file"`  // empty logs to stderr
}

// Default returns a Config with every default applied. Load decodes on top of
// it, so keys missing from the file keep these values while an explicit 0 for
// token_refresh_minutes still disables refresh.
func Default() Config {
	return Config{
		Jellyfin: JellyfinConfig{
			SearchLimit:         5,
			AudioQuality:        "ORIGINAL",
			AudioCodec:          "mp3",
			TokenRefreshMinutes: 30,
			RequestTimeoutMs:    10000,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:2334",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme: "default",
		},
	}
}

// Load reads configuration from disk. If path is empty, a default OS-specific
// location is used.
func Load(path string) (*Config, string, error) {
	cfgPath := path
	if cfgPath == "" {
		var err error
		cfgPath, err = defaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

// Parse decodes TOML data, applies env overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	name := "jellylink"
	if runtime.GOOS == "windows" {
		name = "Jellylink"
	}
	return filepath.Join(dir, name, "config.toml"), nil
}

func applyEnv(cfg *Config) {
	if cfg.Jellyfin.Password == "" && cfg.Jellyfin.PasswordEnv != "" {
		cfg.Jellyfin.Password = os.Getenv(cfg.Jellyfin.PasswordEnv)
	}
}

// Validate performs semantic validation. Blank Jellyfin credentials are
// allowed here: the resolver declines at request time instead.
func Validate(cfg Config) error {
	if cfg.Jellyfin.SearchLimit < 1 {
		return errors.New("jellyfin.search_limit must be at least 1")
	}
	if cfg.Jellyfin.TokenRefreshMinutes < 0 {
		return errors.New("jellyfin.token_refresh_minutes must not be negative")
	}
	if cfg.Jellyfin.RequestTimeoutMs < 0 {
		return errors.New("jellyfin.request_timeout_ms must not be negative")
	}
	if cfg.Jellyfin.BaseURL != "" &&
		!strings.HasPrefix(cfg.Jellyfin.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Jellyfin.BaseURL, "https://") {
		return fmt.Errorf("jellyfin.base_url %q must start with http:// or https://", cfg.Jellyfin.BaseURL)
	}
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level: %s", cfg.Logging.Level)
	}
	return nil
}

// HasCredentials reports whether enough is configured to attempt a login.
func (c JellyfinConfig) HasCredentials() bool {
	return strings.TrimSpace(c.BaseURL) != "" &&
		strings.TrimSpace(c.Username) != "" &&
		strings.TrimSpace(c.Password) != ""
}

// RequestTimeout converts RequestTimeoutMs into a duration, defaulting to 10s.
func (c JellyfinConfig) RequestTimeout() time.Duration {
	d := time.Duration(c.RequestTimeoutMs) * time.Millisecond
	if d == 0 {
		d = 10 * time.Second
	}
	return d
}
