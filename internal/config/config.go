package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version    string                    `yaml:"version"`
	Server     ServerConfig              `yaml:"server"`
	API        APIConfig                 `yaml:"api"`
	Sync       SyncConfig                `yaml:"sync"`
	State      StateConfig               `yaml:"state"`
	TokenStore TokenStoreConfig          `yaml:"token_store"`
	Telegram   TelegramConfig            `yaml:"telegram"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APIConfig contains API-related configuration.
type APIConfig struct {
	BasePath  string          `yaml:"base_path"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig contains authentication configuration.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// SyncConfig contains cross-provider sync engine configuration.
type SyncConfig struct {
	// DefaultWindowDays bounds the first fetch window for a provider that
	// has never synced. Providers may override it per block.
	DefaultWindowDays int `yaml:"default_window_days"`
	// PageCap bounds how many pages a paginated fetch will follow.
	PageCap int `yaml:"page_cap"`
	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// StateConfig contains state token configuration.
type StateConfig struct {
	// Secret signs state tokens when set. Unsigned tokens are only accepted
	// while the secret is empty.
	Secret string `yaml:"secret"`
}

// TokenStoreConfig contains credential store configuration.
type TokenStoreConfig struct {
	// EncryptionKey is a hex-encoded 32-byte AES key. Credentials are stored
	// as plaintext JSON when empty.
	EncryptionKey string `yaml:"encryption_key"`
}

// TelegramConfig contains operational alert configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// ProviderConfig contains one provider block.
type ProviderConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURI  string   `yaml:"redirect_uri"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RevokeURL    string   `yaml:"revoke_url"`
	BaseURL      string   `yaml:"base_url"`
	Scopes       []string `yaml:"scopes"`
	WindowDays   int      `yaml:"window_days"`
	UseMockData  bool     `yaml:"use_mock_data"`
}

// providerDefaults holds the well-known endpoints per provider so a config
// block only has to carry credentials.
var providerDefaults = map[string]ProviderConfig{
	"plaid": {
		BaseURL:    "https://sandbox.plaid.com",
		WindowDays: 30,
	},
	"strava": {
		AuthURL:    "https://www.strava.com/oauth/authorize",
		TokenURL:   "https://www.strava.com/oauth/token",
		RevokeURL:  "https://www.strava.com/oauth/deauthorize",
		BaseURL:    "https://www.strava.com/api/v3",
		Scopes:     []string{"read", "activity:read_all"},
		WindowDays: 90,
	},
	"spotify": {
		AuthURL:    "https://accounts.spotify.com/authorize",
		TokenURL:   "https://accounts.spotify.com/api/token",
		BaseURL:    "https://api.spotify.com/v1",
		Scopes:     []string{"user-read-recently-played", "user-library-read"},
		WindowDays: 30,
	},
	"healthkit": {
		WindowDays: 30,
	},
	"contacts": {
		AuthURL:    "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:   "https://oauth2.googleapis.com/token",
		RevokeURL:  "https://oauth2.googleapis.com/revoke",
		BaseURL:    "https://people.googleapis.com/v1",
		Scopes:     []string{"https://www.googleapis.com/auth/contacts.readonly"},
		WindowDays: 365,
	},
	"gmail": {
		AuthURL:    "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:   "https://oauth2.googleapis.com/token",
		RevokeURL:  "https://oauth2.googleapis.com/revoke",
		BaseURL:    "https://gmail.googleapis.com/gmail/v1",
		Scopes:     []string{"https://www.googleapis.com/auth/gmail.readonly"},
		WindowDays: 30,
	},
	"location": {
		WindowDays: 30,
	},
	"books": {
		BaseURL:    "https://books.example.com",
		WindowDays: 365,
	},
}

// Provider returns the block for name with well-known defaults merged in.
// Unknown providers get an empty block back.
func (c *Config) Provider(name string) ProviderConfig {
	merged := providerDefaults[name]
	pc, ok := c.Providers[name]
	if !ok {
		if merged.WindowDays == 0 {
			merged.WindowDays = c.Sync.DefaultWindowDays
		}
		return merged
	}

	if pc.ClientID != "" {
		merged.ClientID = pc.ClientID
	}
	if pc.ClientSecret != "" {
		merged.ClientSecret = pc.ClientSecret
	}
	if pc.RedirectURI != "" {
		merged.RedirectURI = pc.RedirectURI
	}
	if pc.AuthURL != "" {
		merged.AuthURL = pc.AuthURL
	}
	if pc.TokenURL != "" {
		merged.TokenURL = pc.TokenURL
	}
	if pc.RevokeURL != "" {
		merged.RevokeURL = pc.RevokeURL
	}
	if pc.BaseURL != "" {
		merged.BaseURL = pc.BaseURL
	}
	if len(pc.Scopes) > 0 {
		merged.Scopes = pc.Scopes
	}
	if pc.WindowDays > 0 {
		merged.WindowDays = pc.WindowDays
	}
	merged.UseMockData = pc.UseMockData
	if merged.WindowDays == 0 {
		merged.WindowDays = c.Sync.DefaultWindowDays
	}
	return merged
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	for name, pc := range c.Providers {
		if err := pc.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
	}
	if s.TLS.Enabled {
		if s.TLS.CertFile == "" {
			return fmt.Errorf("tls: cert_file is required when tls is enabled")
		}
		if s.TLS.KeyFile == "" {
			return fmt.Errorf("tls: key_file is required when tls is enabled")
		}
	}
	return nil
}

// Validate validates API configuration.
func (a *APIConfig) Validate() error {
	if a.BasePath == "" {
		a.BasePath = "/api/v1"
	}
	if a.Auth.Enabled && len(a.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth: api_keys is required when auth is enabled")
	}
	if a.RateLimit.RequestsPerMinute <= 0 {
		a.RateLimit.RequestsPerMinute = 1000
	}
	if a.RateLimit.RequestsPerMinute > 100000 {
		a.RateLimit.RequestsPerMinute = 100000
	}
	if a.RateLimit.Burst <= 0 {
		a.RateLimit.Burst = 100
	}
	if a.RateLimit.Burst > 10000 {
		a.RateLimit.Burst = 10000
	}
	return nil
}

// Validate validates sync configuration and applies defaults.
func (s *SyncConfig) Validate() error {
	if s.DefaultWindowDays <= 0 {
		s.DefaultWindowDays = 30
	}
	if s.DefaultWindowDays > 3650 {
		return fmt.Errorf("default_window_days must be at most 3650")
	}
	if s.PageCap <= 0 {
		s.PageCap = 20
	}
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = 20 * time.Second
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return fmt.Errorf("bot_token is required when telegram is enabled")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("chat_id is required when telegram is enabled")
	}
	return nil
}

// Validate validates a provider block.
func (p *ProviderConfig) Validate() error {
	if p.WindowDays < 0 {
		return fmt.Errorf("window_days cannot be negative")
	}
	return nil
}
