package apic

import (
	"net/http"

	"github.com/eatgo/apic/breaker"
	"github.com/eatgo/apic/intercept"
	"github.com/eatgo/apic/retry"
	"github.com/gostratum/core/logx"
)

// Middleware allows chaining custom RoundTrippers around the base transport.
type Middleware func(http.RoundTripper) http.RoundTripper

// wrapTransport wraps base so that middlewares[0] runs first.
func wrapTransport(base http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			rt = middlewares[i](rt)
		}
	}
	return rt
}

// chain lists the client middlewares outermost first. The bearer middleware
// sits inside retry so that every attempt reads the credential afresh.
func chain(cfg Config, retryPolicy retry.Policy, breakerMgr breaker.Manager, augmenter *intercept.Augmenter, logger logx.Logger) []Middleware {
	var mws []Middleware
	for _, mw := range cfg.Middlewares {
		if mw != nil {
			mws = append(mws, mw)
		}
	}
	if cfg.RetryEnabled && retryPolicy != nil {
		mws = append(mws, retry.NewMiddleware(retryPolicy, logger))
	}
	if cfg.BreakerEnabled && breakerMgr != nil {
		mws = append(mws, breaker.NewMiddleware(breakerMgr))
	}
	if augmenter != nil {
		mws = append(mws, intercept.Middleware(augmenter))
	}
	return mws
}
