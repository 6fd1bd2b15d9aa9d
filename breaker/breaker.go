// Package breaker stops calling an API host that keeps failing.
package breaker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Manager manages host-scoped circuit breakers.
type Manager interface {
	Do(host string, fn func() (*http.Response, error)) (*http.Response, error)
}

// Config controls breaker behaviour.
type Config struct {
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// NewManager returns a breaker manager keyed by host. Transport errors and
// 5xx responses count as failures; 4xx responses, including 401 for a
// missing credential, do not.
func NewManager(cfg Config) Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	return &manager{config: cfg}
}

type manager struct {
	config   Config
	breakers sync.Map
}

// serverFailure carries a 5xx response through gobreaker so that it is
// recorded as a failure but still handed back to the caller.
type serverFailure struct {
	resp *http.Response
}

func (e *serverFailure) Error() string { return "server error: " + e.resp.Status }

func (m *manager) Do(host string, fn func() (*http.Response, error)) (*http.Response, error) {
	if host == "" {
		return fn()
	}

	result, err := m.get(host).Execute(func() (any, error) {
		resp, err := fn()
		if err == nil && resp != nil && resp.StatusCode >= http.StatusInternalServerError {
			return resp, &serverFailure{resp: resp}
		}
		return resp, err
	})

	var failure *serverFailure
	if errors.As(err, &failure) {
		return failure.resp, nil
	}
	if err != nil {
		return nil, err
	}
	resp, _ := result.(*http.Response)
	return resp, nil
}

func (m *manager) get(host string) *gobreaker.CircuitBreaker {
	if cb, ok := m.breakers.Load(host); ok {
		return cb.(*gobreaker.CircuitBreaker)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          host,
		MaxRequests:   1,
		Interval:      m.config.Interval,
		Timeout:       m.config.Timeout,
		ReadyToTrip:   m.config.ReadyToTrip,
		OnStateChange: m.config.OnStateChange,
	})
	actual, _ := m.breakers.LoadOrStore(host, cb)
	return actual.(*gobreaker.CircuitBreaker)
}

type overrideKey struct{}

// WithOverride toggles breaker usage for the request.
func WithOverride(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, overrideKey{}, enabled)
}

// Enabled returns true if breaker should run for the request.
func Enabled(ctx context.Context, defaultEnabled bool) bool {
	if ctx == nil {
		return defaultEnabled
	}
	if v, ok := ctx.Value(overrideKey{}).(bool); ok {
		return v
	}
	return defaultEnabled
}

// NewMiddleware wraps a transport with breaker protection.
func NewMiddleware(m Manager) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if !Enabled(req.Context(), true) || req.URL == nil {
				return next.RoundTrip(req)
			}
			return m.Do(req.URL.Host, func() (*http.Response, error) {
				return next.RoundTrip(req)
			})
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
