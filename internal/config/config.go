package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAuthority = "https://login.windows.net"
	DefaultResource  = "https://outlook.office365.com/"
	DefaultBaseURL   = "https://outlook.office365.com/ews/odata"
	DefaultTenant    = "common"
)

// Token store backends.
const (
	TokenStoreKeyring = "keyring"
	TokenStoreFile    = "file"
)

// Config is the application configuration, read from config.yaml with
// OUTLOOKTERM_* environment overrides.
type Config struct {
	// ClientID is the registered application (client) ID. Required.
	ClientID string `mapstructure:"client_id"`
	// ClientSecret is only needed for confidential app registrations.
	ClientSecret string `mapstructure:"client_secret"`
	Tenant       string `mapstructure:"tenant"`
	Authority    string `mapstructure:"authority"`
	Resource     string `mapstructure:"resource"`
	BaseURL      string `mapstructure:"base_url"`

	// RedirectPort is the loopback port for the sign-in redirect; 0 picks
	// a free port.
	RedirectPort int `mapstructure:"redirect_port"`

	TokenStore string `mapstructure:"token_store"`

	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Dir is the directory holding config, cache and logs. Not read from
	// the file itself.
	Dir string `mapstructure:"-"`
}

// DefaultDir returns ~/.config/outlookterm.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "outlookterm")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads configuration from path. A missing file is not an error:
// defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("outlookterm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dir := filepath.Dir(path)
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("tenant", DefaultTenant)
	v.SetDefault("authority", DefaultAuthority)
	v.SetDefault("resource", DefaultResource)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("redirect_port", 0)
	v.SetDefault("token_store", TokenStoreKeyring)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("auth_timeout", 5*time.Minute)
	v.SetDefault("requests_per_second", 2.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", filepath.Join(dir, "outlookterm.log"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Dir = dir
	cfg.Authority = strings.TrimRight(cfg.Authority, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// Validate reports configuration that would make sign-in or fetching
// impossible.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("client_id is required (set it in config.yaml or OUTLOOKTERM_CLIENT_ID)")
	}
	if !strings.HasPrefix(c.Authority, "https://") {
		return fmt.Errorf("authority must be an https URL, got %q", c.Authority)
	}
	if c.Resource == "" {
		return errors.New("resource is required")
	}
	if !strings.HasPrefix(c.BaseURL, "https://") && !strings.HasPrefix(c.BaseURL, "http://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	switch c.TokenStore {
	case TokenStoreKeyring, TokenStoreFile:
	default:
		return fmt.Errorf("token_store must be %q or %q, got %q", TokenStoreKeyring, TokenStoreFile, c.TokenStore)
	}
	if c.RedirectPort < 0 || c.RedirectPort > 65535 {
		return fmt.Errorf("redirect_port out of range: %d", c.RedirectPort)
	}
	if c.FetchTimeout <= 0 || c.AuthTimeout <= 0 {
		return errors.New("fetch_timeout and auth_timeout must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return errors.New("requests_per_second must be positive")
	}
	return nil
}
