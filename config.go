package apic

import (
	"net/http"
	"time"

	"github.com/eatgo/apic/auth"
	"github.com/eatgo/apic/breaker"
	"github.com/eatgo/apic/credstore"
	"github.com/eatgo/apic/retry"
	"github.com/gostratum/core/configx"
	"github.com/gostratum/core/logx"
)

// Config describes the runtime configuration for the API client. It is
// intended to be populated via configx and then optionally overridden via
// functional options when constructing a client instance.
type Config struct {
	Env             string        `mapstructure:"env" default:"dev" validate:"oneof=dev prod"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout" default:"10s"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" default:"100"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" default:"90s"`

	RetryEnabled     bool          `mapstructure:"retry_enabled" default:"true"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts" default:"3"`
	RetryBaseBackoff time.Duration `mapstructure:"retry_base_backoff" default:"200ms"`
	RetryMaxBackoff  time.Duration `mapstructure:"retry_max_backoff" default:"2s"`
	RetryOnStatuses  []int         `mapstructure:"retry_on_statuses" default:"502,503,504"`

	BreakerEnabled bool `mapstructure:"breaker_enabled" default:"false"`

	Auth struct {
		TokenKey    string `mapstructure:"token_key" default:"eatgo-token"`
		APIMarker   string `mapstructure:"api_marker" default:"/api/"`
		CheckExpiry bool   `mapstructure:"check_expiry" default:"false"`
	} `mapstructure:"auth"`

	// Store selects where the bearer credential is read from. Leaving Kind
	// empty disables bearer augmentation unless a store or credential source
	// is supplied through options.
	Store credstore.Config `mapstructure:"store"`

	// Runtime-only fields set via functional options (ignored by config loader).
	Transport       http.RoundTripper     `mapstructure:"-"`
	Logger          logx.Logger           `mapstructure:"-"`
	Credentials     auth.CredentialSource `mapstructure:"-"`
	CredentialStore credstore.Store       `mapstructure:"-"`
	RetryPolicy     retry.Policy          `mapstructure:"-"`
	Breaker         breaker.Manager       `mapstructure:"-"`
	Middlewares     []Middleware          `mapstructure:"-"`
	HTTPClient      *http.Client          `mapstructure:"-"`
	UserAgent       string                `mapstructure:"-"`
}

// Prefix implements configx.Configurable.
func (Config) Prefix() string { return "apic" }

// NewConfig loads the client configuration using the provided config loader.
func NewConfig(loader configx.Loader) (Config, error) {
	var cfg Config
	return cfg, loader.Bind(&cfg)
}

// applyDefaults ensures derived defaults that depend on other settings are set.
func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 100
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseBackoff == 0 {
		c.RetryBaseBackoff = 200 * time.Millisecond
	}
	if c.RetryMaxBackoff == 0 {
		c.RetryMaxBackoff = 2 * time.Second
	}
	if len(c.RetryOnStatuses) == 0 {
		c.RetryOnStatuses = []int{502, 503, 504}
	}
	if c.Auth.TokenKey == "" {
		c.Auth.TokenKey = credstore.DefaultKey
	}
	if c.Auth.APIMarker == "" {
		c.Auth.APIMarker = auth.DefaultMarker
	}
	if c.Store.Kind != "" && c.Store.Table == "" {
		c.Store.Table = "credentials"
	}
}

// bearerEnabled reports whether the configuration names any credential source.
func (c *Config) bearerEnabled() bool {
	return c.Credentials != nil || c.CredentialStore != nil || c.Store.Kind != ""
}
