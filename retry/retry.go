// Package retry re-sends API calls that failed for transient reasons.
//
// The retry middleware sits outside the bearer middleware in the client
// chain, so every attempt reads the credential store again and picks up a
// token refreshed in the meantime. A 401 or 403 is final: the credential was
// missing or refused and sending the same request cannot change that.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/gostratum/core/logx"
)

// Policy determines if and when a request should be retried.
type Policy interface {
	ShouldRetry(req *http.Request, resp *http.Response, err error, attempt int, force bool) (time.Duration, bool)
}

// PolicyConfig configures the default retry strategy.
type PolicyConfig struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	StatusCodes    []int
	IdempotentOnly bool
}

type statusPolicy struct {
	attempts       int
	base           time.Duration
	ceiling        time.Duration
	statuses       map[int]bool
	idempotentOnly bool
}

// NewPolicy returns a Policy retrying network errors and the configured
// statuses with exponential backoff. 401 and 403 are ignored if listed.
func NewPolicy(cfg PolicyConfig) Policy {
	p := &statusPolicy{
		attempts:       cfg.MaxAttempts,
		base:           cfg.BaseBackoff,
		ceiling:        cfg.MaxBackoff,
		statuses:       make(map[int]bool, len(cfg.StatusCodes)),
		idempotentOnly: cfg.IdempotentOnly,
	}
	if p.attempts <= 0 {
		p.attempts = 3
	}
	if p.base <= 0 {
		p.base = 200 * time.Millisecond
	}
	if p.ceiling <= 0 {
		p.ceiling = 2 * time.Second
	}
	for _, code := range cfg.StatusCodes {
		p.statuses[code] = !authFailure(code)
	}
	return p
}

func (p *statusPolicy) ShouldRetry(req *http.Request, resp *http.Response, err error, attempt int, force bool) (time.Duration, bool) {
	if attempt >= p.attempts {
		return 0, false
	}
	if p.idempotentOnly && !force && !idempotent(req.Method) {
		return 0, false
	}
	if !p.transient(resp, err) {
		return 0, false
	}
	return p.wait(attempt), true
}

func (p *statusPolicy) transient(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	return resp != nil && p.statuses[resp.StatusCode]
}

// wait doubles base per attempt up to the ceiling and adds up to 20% jitter.
func (p *statusPolicy) wait(attempt int) time.Duration {
	d := p.base
	for i := 1; i < attempt && d < p.ceiling; i++ {
		d *= 2
	}
	d = min(d, p.ceiling)
	return d + rand.N(d/5+1)
}

func authFailure(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

type policyKey struct{}
type forceKey struct{}

// WithPolicy stores the policy in the request context.
func WithPolicy(ctx context.Context, p Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, policyKey{}, p)
}

// PolicyFromContext retrieves a policy from context.
func PolicyFromContext(ctx context.Context) Policy {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(policyKey{}).(Policy)
	return p
}

// WithForce marks a request as retryable regardless of method idempotency.
func WithForce(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, forceKey{}, true)
}

// IsForce returns true if the context requested forced retries.
func IsForce(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	force, _ := ctx.Value(forceKey{}).(bool)
	return force
}

// NewMiddleware constructs the retry middleware. The policy in the request
// context wins over fallback. A request whose body cannot be produced again
// (no GetBody) is sent once.
func NewMiddleware(fallback Policy, logger logx.Logger) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = logx.NewNoopLogger()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return &transport{next: next, fallback: fallback, logger: logger}
	}
}

type transport struct {
	next     http.RoundTripper
	fallback Policy
	logger   logx.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	policy := PolicyFromContext(req.Context())
	if policy == nil {
		policy = t.fallback
	}
	if policy == nil {
		return t.next.RoundTrip(req)
	}
	force := IsForce(req.Context())
	replayable := canReplay(req)

	current := req
	for attempt := 1; ; attempt++ {
		resp, err := t.next.RoundTrip(current)
		wait, again := policy.ShouldRetry(current, resp, err, attempt, force)
		if !again {
			return resp, err
		}
		if !replayable {
			t.logger.Debug("api request not retried, body cannot be replayed",
				logx.String("method", req.Method),
				logx.String("url", req.URL.String()),
			)
			return resp, err
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		t.logger.Debug("retrying api request",
			logx.String("method", req.Method),
			logx.String("url", req.URL.String()),
			logx.Int("attempt", attempt+1),
		)
		if err := sleep(req.Context(), wait); err != nil {
			return nil, fmt.Errorf("retry interrupted: %w", err)
		}
		if current, err = rewind(req); err != nil {
			return nil, err
		}
	}
}

func canReplay(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind returns a fresh copy of req with its body reset.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("reset body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
