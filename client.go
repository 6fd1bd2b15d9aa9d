package apic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eatgo/apic/auth"
	"github.com/eatgo/apic/breaker"
	"github.com/eatgo/apic/credstore"
	"github.com/eatgo/apic/intercept"
	"github.com/eatgo/apic/retry"
	"github.com/gostratum/core/logx"
)

// Client represents the public contract for the API client.
//
// Requests issued through Do and the verb helpers, and calls obtained from
// NewCall, carry "Authorization: Bearer <token>" whenever their URL contains
// the API marker and the credential store holds a usable token.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string, opts ...ReqOption) (*Response, error)
	Post(ctx context.Context, url string, body any, opts ...ReqOption) (*Response, error)
	Put(ctx context.Context, url string, body any, opts ...ReqOption) (*Response, error)
	Patch(ctx context.Context, url string, body any, opts ...ReqOption) (*Response, error)
	Delete(ctx context.Context, url string, opts ...ReqOption) (*Response, error)
	NewCall() intercept.Handle
	Policy() *auth.Policy
	Close() error
}

const defaultUserAgent = "eatgo-apic/1"

type client struct {
	cfg         Config
	httpClient  *http.Client
	retryPolicy retry.Policy
	augmenter   *intercept.Augmenter
	logger      logx.Logger
	closers     []io.Closer
}

// New constructs a Client with the supplied options applied.
func New(opts ...Option) (Client, error) {
	cfg := Config{}
	cfg.applyDefaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = logx.NewNoopLogger()
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	c := &client{cfg: cfg, logger: logger}

	if cfg.bearerEnabled() {
		augmenter, err := c.newAugmenter()
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.augmenter = augmenter
	}

	retryPolicy := cfg.RetryPolicy
	if retryPolicy == nil && cfg.RetryEnabled {
		retryPolicy = retry.NewPolicy(retry.PolicyConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			BaseBackoff:    cfg.RetryBaseBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			StatusCodes:    cfg.RetryOnStatuses,
			IdempotentOnly: true,
		})
	}
	c.retryPolicy = retryPolicy

	breakerMgr := cfg.Breaker
	if breakerMgr == nil && cfg.BreakerEnabled {
		breakerMgr = breaker.NewManager(breaker.Config{})
	}

	baseTransport := cfg.Transport
	if baseTransport == nil {
		baseTransport = defaultTransport(cfg)
	}
	transport := wrapTransport(baseTransport, chain(cfg, retryPolicy, breakerMgr, c.augmenter, logger)...)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = cfg.Timeout
	httpClient.Transport = transport
	c.httpClient = httpClient

	return c, nil
}

// newAugmenter resolves the credential source, in order of precedence:
// explicit source, injected store, store opened from configuration.
func (c *client) newAugmenter() (*intercept.Augmenter, error) {
	source := c.cfg.Credentials
	if source == nil && c.cfg.CredentialStore != nil {
		source = credstore.Source(c.cfg.CredentialStore, c.cfg.Auth.TokenKey)
	}
	if source == nil {
		store, err := credstore.Open(c.cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		if closer, ok := store.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
		source = credstore.Source(store, c.cfg.Auth.TokenKey)
	}

	policy, err := auth.New(source,
		auth.WithMarker(c.cfg.Auth.APIMarker),
		auth.WithExpiryCheck(c.cfg.Auth.CheckExpiry),
	)
	if err != nil {
		return nil, err
	}
	return intercept.NewAugmenter(policy, c.logger)
}

// Do executes the supplied Request.
func (c *client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := req.clone()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	policy := r.retryPolicy
	if policy == nil {
		policy = c.retryPolicy
	}
	if policy != nil {
		ctx = retry.WithPolicy(ctx, policy)
		if r.forceRetry {
			ctx = retry.WithForce(ctx)
		}
	}
	if r.breakerToggle != nil {
		ctx = breaker.WithOverride(ctx, *r.breakerToggle)
	}
	if r.anonymous {
		ctx = intercept.WithBypass(ctx)
	}

	httpReq, err := r.buildHTTPRequest(ctx, c.cfg)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return newResponse(resp), nil
}

func (c *client) Get(ctx context.Context, url string, opts ...ReqOption) (*Response, error) {
	return c.execute(ctx, http.MethodGet, url, nil, opts...)
}

func (c *client) Post(ctx context.Context, url string, body any, opts ...ReqOption) (*Response, error) {
	return c.execute(ctx, http.MethodPost, url, body, opts...)
}

func (c *client) Put(ctx context.Context, url string, body any, opts ...ReqOption) (*Response, error) {
	return c.execute(ctx, http.MethodPut, url, body, opts...)
}

func (c *client) Patch(ctx context.Context, url string, body any, opts ...ReqOption) (*Response, error) {
	return c.execute(ctx, http.MethodPatch, url, body, opts...)
}

func (c *client) Delete(ctx context.Context, url string, opts ...ReqOption) (*Response, error) {
	return c.execute(ctx, http.MethodDelete, url, nil, opts...)
}

// NewCall returns a fresh two-phase call. When bearer augmentation is
// configured the call is wrapped so the credential is attached at Send, with
// scope decided on the resolved URL as it is for Do.
func (c *client) NewCall() intercept.Handle {
	call := newCall(c)
	if c.augmenter == nil {
		return call
	}
	return intercept.Wrap(call, c.augmenter, intercept.WithResolver(c.resolve))
}

// resolve maps a call target onto the URL it is sent to.
func (c *client) resolve(target string) string {
	return resolveURL(c.cfg.BaseURL, target)
}

// Policy returns the bearer policy, or nil when augmentation is disabled.
func (c *client) Policy() *auth.Policy {
	if c.augmenter == nil {
		return nil
	}
	return c.augmenter.Policy()
}

// Close releases idle connections and any store the client opened itself.
func (c *client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *client) execute(ctx context.Context, method, target string, body any, opts ...ReqOption) (*Response, error) {
	opts = append(normalizeBody(body), opts...)
	return c.Do(ctx, NewRequest(method, target, opts...))
}

func normalizeBody(body any) []ReqOption {
	switch v := body.(type) {
	case nil:
		return nil
	case ReqOption:
		return []ReqOption{v}
	case []byte:
		return []ReqOption{WithRaw(v, "application/octet-stream")}
	case string:
		return []ReqOption{WithRaw([]byte(v), "text/plain; charset=utf-8")}
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return []ReqOption{withBodyError(err)}
		}
		return []ReqOption{WithRaw(data, "application/octet-stream")}
	default:
		return []ReqOption{WithJSON(v)}
	}
}

func defaultTransport(cfg Config) http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
