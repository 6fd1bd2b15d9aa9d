package apic

import (
	"net/http"
	"time"

	"github.com/eatgo/apic/auth"
	"github.com/eatgo/apic/breaker"
	"github.com/eatgo/apic/credstore"
	"github.com/eatgo/apic/retry"
	"github.com/gostratum/core/logx"
)

// Option mutates the client configuration before a Client is constructed.
type Option func(*Config)

// WithConfig replaces the configuration struct. Typically used when loading
// configuration from configx/fx.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithBaseURL sets the default base URL used when requests are built with a
// relative path.
func WithBaseURL(u string) Option {
	return func(c *Config) {
		c.BaseURL = u
	}
}

// WithTimeout overrides the default client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRetry toggles retry behaviour at the client level.
func WithRetry(enabled bool, maxAttempts int) Option {
	return func(c *Config) {
		c.RetryEnabled = enabled
		if maxAttempts > 0 {
			c.RetryMaxAttempts = maxAttempts
		}
	}
}

// WithBreaker toggles the circuit breaker for outbound calls.
func WithBreaker(enabled bool) Option {
	return func(c *Config) {
		c.BreakerEnabled = enabled
	}
}

// WithTransport injects a custom base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}

// WithHTTPClient injects an http.Client instance. When provided, the Timeout
// and Transport settings from the Config are applied on top.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger used for bearer traces and retry logging.
func WithLogger(l logx.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithCredentials sets the source the bearer credential is read from. It
// takes precedence over any store.
func WithCredentials(src auth.CredentialSource) Option {
	return func(c *Config) {
		c.Credentials = src
	}
}

// WithStore reads the bearer credential from store under the configured
// token key. The client does not close a store supplied this way.
func WithStore(store credstore.Store) Option {
	return func(c *Config) {
		c.CredentialStore = store
	}
}

// WithTokenKey overrides the store key holding the credential.
func WithTokenKey(key string) Option {
	return func(c *Config) {
		c.Auth.TokenKey = key
	}
}

// WithAPIMarker overrides the path fragment that marks protected API calls.
func WithAPIMarker(marker string) Option {
	return func(c *Config) {
		c.Auth.APIMarker = marker
	}
}

// WithExpiryCheck makes the client skip JWT credentials that have expired.
func WithExpiryCheck(enabled bool) Option {
	return func(c *Config) {
		c.Auth.CheckExpiry = enabled
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Config) {
		c.RetryPolicy = p
	}
}

// WithBreakerManager injects a custom breaker manager implementation.
func WithBreakerManager(m breaker.Manager) Option {
	return func(c *Config) {
		c.Breaker = m
	}
}

// WithMiddleware appends a custom middleware to the transport chain.
func WithMiddleware(m Middleware) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, m)
	}
}

// WithUserAgent overrides the default User-Agent header applied to requests.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}
