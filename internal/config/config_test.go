package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Version: "1",
		Server:  ServerConfig{Host: "127.0.0.1", HTTPPort: 8080},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "/api/v1", cfg.API.BasePath)
	assert.Equal(t, 30, cfg.Sync.DefaultWindowDays)
	assert.Equal(t, 20, cfg.Sync.PageCap)
	assert.Equal(t, 20*time.Second, cfg.Sync.HTTPTimeout)
}

func TestValidateMissingVersion(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "x", HTTPPort: 1}}
	assert.Error(t, cfg.Validate())
}

func TestValidateTelegramRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Telegram.BotToken = "tok"
	cfg.Telegram.ChatID = 42
	assert.NoError(t, cfg.Validate())
}

func TestProviderMergesDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = map[string]ProviderConfig{
		"strava": {ClientID: "id", ClientSecret: "secret"},
	}
	require.NoError(t, cfg.Validate())

	pc := cfg.Provider("strava")
	assert.Equal(t, "id", pc.ClientID)
	assert.Equal(t, "https://www.strava.com/oauth/token", pc.TokenURL)
	assert.Equal(t, 90, pc.WindowDays)
}

func TestProviderOverridesDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = map[string]ProviderConfig{
		"spotify": {TokenURL: "http://localhost:1234/token", WindowDays: 7},
	}
	require.NoError(t, cfg.Validate())

	pc := cfg.Provider("spotify")
	assert.Equal(t, "http://localhost:1234/token", pc.TokenURL)
	assert.Equal(t, 7, pc.WindowDays)
	assert.Equal(t, "https://accounts.spotify.com/authorize", pc.AuthURL)
}

func TestProviderUnknownUsesSyncWindow(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	pc := cfg.Provider("mystery")
	assert.Equal(t, cfg.Sync.DefaultWindowDays, pc.WindowDays)
	assert.Empty(t, pc.ClientID)
}

func TestLoaderEnvSubstitution(t *testing.T) {
	t.Setenv("LINKHUB_TEST_SECRET", "s3cr3t")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
version: "1"
server:
  host: 127.0.0.1
  http_port: 8080
providers:
  strava:
    client_id: abc
    client_secret: ${LINKHUB_TEST_SECRET}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Providers["strava"].ClientSecret)
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := loader.Load()
	assert.Error(t, err)
}
