package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
)

const stateFileName = "meridian/credentials.db"

// Client captures the settings the tenant client needs at boot.
type Client struct {
	// Scheme and APIHost build tenant base URLs as <scheme>://<slug>.<api host>.
	Scheme  string `env:"MERIDIAN_SCHEME" envDefault:"https"`
	APIHost string `env:"MERIDIAN_API_HOST" envDefault:"api.localhost"`
	// PublicBaseURL serves public endpoints. Defaults to <scheme>://<api host>.
	PublicBaseURL string `env:"MERIDIAN_PUBLIC_BASE_URL"`

	// DevMode routes tenant calls to the current host with an explicit port.
	DevMode bool   `env:"MERIDIAN_DEV_MODE"`
	DevHost string `env:"MERIDIAN_DEV_HOST" envDefault:"localhost"`
	DevPort int    `env:"MERIDIAN_DEV_PORT" envDefault:"8000"`

	RootDomain   string            `env:"MERIDIAN_ROOT_DOMAIN"`
	TenantSource string            `env:"MERIDIAN_TENANT_SOURCE" envDefault:"host"`
	TenantMap    map[string]string `env:"MERIDIAN_TENANT_MAP" envSeparator:"," envKeyValSeparator:"="`
	Location     string            `env:"MERIDIAN_LOCATION"`

	PublicEndpoints []string      `env:"MERIDIAN_PUBLIC_ENDPOINTS" envSeparator:","`
	RequestTimeout  time.Duration `env:"MERIDIAN_REQUEST_TIMEOUT" envDefault:"15s"`

	PostalBaseURL string `env:"MERIDIAN_POSTAL_BASE_URL" envDefault:"https://viacep.com.br"`

	StateFile string `env:"MERIDIAN_STATE_FILE"`
	LogLevel  string `env:"MERIDIAN_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MERIDIAN_LOG_FORMAT" envDefault:"json"`
}

// FromEnv builds a Client config from the process environment so main stays lean.
func FromEnv() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.withDefaults()
}

// FromMap builds a Client config from an explicit environment, for tests and embedding.
func FromMap(environ map[string]string) (Client, error) {
	var cfg Client
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg.withDefaults()
}

func (c Client) withDefaults() (Client, error) {
	c.Scheme = strings.ToLower(strings.TrimSpace(c.Scheme))
	if c.Scheme != "http" && c.Scheme != "https" {
		return Client{}, fmt.Errorf("unsupported scheme %q", c.Scheme)
	}
	c.APIHost = strings.Trim(strings.TrimSpace(c.APIHost), ".")
	if c.APIHost == "" {
		return Client{}, fmt.Errorf("api host is required")
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = c.Scheme + "://" + c.APIHost
	}
	if _, err := url.Parse(c.PublicBaseURL); err != nil {
		return Client{}, fmt.Errorf("invalid public base url: %w", err)
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.RootDomain == "" {
		c.RootDomain = c.APIHost
	}
	if c.DevPort <= 0 || c.DevPort > 65535 {
		return Client{}, fmt.Errorf("invalid dev port %d", c.DevPort)
	}
	if c.RequestTimeout <= 0 {
		return Client{}, fmt.Errorf("request timeout must be positive")
	}
	return c, nil
}

// StatePath returns the durable credential file, defaulting to the XDG state dir.
func (c Client) StatePath() (string, error) {
	if c.StateFile != "" {
		return c.StateFile, nil
	}
	path, err := xdg.StateFile(stateFileName)
	if err != nil {
		return "", fmt.Errorf("resolve state file: %w", err)
	}
	return path, nil
}
