package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[jellyfin]
base_url = "http://jf.local:8096"
username = "bot"
password = "secret"
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Jellyfin.SearchLimit)
	assert.Equal(t, "ORIGINAL", cfg.Jellyfin.AudioQuality)
	assert.Equal(t, "mp3", cfg.Jellyfin.AudioCodec)
	assert.Equal(t, 30, cfg.Jellyfin.TokenRefreshMinutes)
	assert.Equal(t, 10*time.Second, cfg.Jellyfin.RequestTimeout())
	assert.Equal(t, "127.0.0.1:2334", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "default", cfg.UI.Theme)
	assert.False(t, cfg.UI.NoColor)
	assert.True(t, cfg.Jellyfin.HasCredentials())
}

func TestParseExplicitZeroRefresh(t *testing.T) {
	cfg, err := Parse([]byte(`
[jellyfin]
token_refresh_minutes = 0
audio_quality = "256"
`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Jellyfin.TokenRefreshMinutes)
	assert.Equal(t, "256", cfg.Jellyfin.AudioQuality)
	assert.False(t, cfg.Jellyfin.HasCredentials())
}

func TestParseUI(t *testing.T) {
	cfg, err := Parse([]byte(`
[ui]
theme = "mono"
no_color = true
`))
	require.NoError(t, err)
	assert.Equal(t, "mono", cfg.UI.Theme)
	assert.True(t, cfg.UI.NoColor)
}

func TestParsePasswordEnv(t *testing.T) {
	t.Setenv("JELLYLINK_TEST_PW", "from-env")

	cfg, err := Parse([]byte(`
[jellyfin]
base_url = "http://jf.local"
username = "bot"
password_env = "JELLYLINK_TEST_PW"
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Jellyfin.Password)
}

func TestParseExplicitPasswordWinsOverEnv(t *testing.T) {
	t.Setenv("JELLYLINK_TEST_PW", "from-env")

	cfg, err := Parse([]byte(`
[jellyfin]
password = "inline"
password_env = "JELLYLINK_TEST_PW"
`))
	require.NoError(t, err)
	assert.Equal(t, "inline", cfg.Jellyfin.Password)
}

func TestParseInvalidTOML(t *testing.T) {
	_, err := Parse([]byte(`[jellyfin`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "zero search limit",
			mutate:  func(c *Config) { c.Jellyfin.SearchLimit = 0 },
			wantErr: true,
		},
		{
			name:    "negative refresh",
			mutate:  func(c *Config) { c.Jellyfin.TokenRefreshMinutes = -1 },
			wantErr: true,
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.Jellyfin.BaseURL = "jf.local:8096" },
			wantErr: true,
		},
		{
			name:    "https base url",
			mutate:  func(c *Config) { c.Jellyfin.BaseURL = "https://jf.example.com/" },
			wantErr: false,
		},
		{
			name:    "missing server addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[jellyfin]\nsearch_limit = 3\n"), 0o600))

	cfg, resolved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, 3, cfg.Jellyfin.SearchLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
