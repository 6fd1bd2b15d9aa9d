package intercept

import (
	"net/http"
)

// Transport is an http.RoundTripper attaching the bearer credential to
// in-scope requests before delegating to the wrapped transport.
type Transport struct {
	next      http.RoundTripper
	augmenter *Augmenter
}

// NewTransport wraps next. A nil next falls back to http.DefaultTransport at
// call time; a nil augmenter makes the Transport a pass-through.
func NewTransport(next http.RoundTripper, a *Augmenter) *Transport {
	return &Transport{next: next, augmenter: a}
}

// Middleware returns the Transport as a middleware constructor.
func Middleware(a *Augmenter) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return NewTransport(next, a)
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified; when a credential is attached a clone carrying it is forwarded.
// Whatever the wrapped transport returns is passed back unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	if t.augmenter == nil || Bypassed(req.Context()) {
		return next.RoundTrip(req)
	}

	out := req
	err := t.augmenter.augment(req, pathwayTransport, func(name, value string) error {
		out = req.Clone(req.Context())
		if out.Header == nil {
			out.Header = make(http.Header)
		}
		out.Header.Set(name, value)
		return nil
	})
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	return next.RoundTrip(out)
}
