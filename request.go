package apic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eatgo/apic/retry"
)

// ReqOption applies configuration to a Request before it is executed.
type ReqOption func(*Request)

// payload is an encoded request body. Encoding happens when the option is
// applied, so every attempt of a retried request sends identical bytes.
type payload struct {
	data        []byte
	contentType string
	err         error
}

// Request describes one API call for Client.Do.
type Request struct {
	method  string
	url     string
	headers http.Header
	body    *payload
	accept  string

	timeout       time.Duration
	retryPolicy   retry.Policy
	forceRetry    bool
	breakerToggle *bool
	anonymous     bool
}

// NewRequest constructs a Request for Client.Do.
func NewRequest(method, target string, opts ...ReqOption) *Request {
	req := &Request{
		method:  strings.ToUpper(method),
		url:     target,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// Method returns the HTTP method associated with the request.
func (r *Request) Method() string { return r.method }

// URL returns the target as given, possibly relative to the client base URL.
func (r *Request) URL() string { return r.url }

// Header returns a copy of the headers set on the request.
func (r *Request) Header() http.Header { return r.headers.Clone() }

func (r *Request) clone() *Request {
	c := *r
	c.headers = r.headers.Clone()
	if c.headers == nil {
		c.headers = make(http.Header)
	}
	return &c
}

// buildHTTPRequest resolves the target against the base URL and attaches the
// encoded body with a GetBody for replays.
func (r *Request) buildHTTPRequest(ctx context.Context, cfg Config) (*http.Request, error) {
	var body io.Reader
	if r.body != nil {
		if r.body.err != nil {
			return nil, r.body.err
		}
		body = bytes.NewReader(r.body.data)
	}

	// bytes.Reader bodies get ContentLength and GetBody from net/http.
	httpReq, err := http.NewRequestWithContext(ctx, r.method, resolveURL(cfg.BaseURL, r.url), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header = r.headers.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	setDefaultHeader(httpReq.Header, "User-Agent", cfg.UserAgent)
	setDefaultHeader(httpReq.Header, "Accept", r.accept)
	if r.body != nil {
		setDefaultHeader(httpReq.Header, "Content-Type", r.body.contentType)
	}
	return httpReq, nil
}

// WithHeader sets a header value on the outgoing request.
func WithHeader(key, value string) ReqOption {
	return func(r *Request) {
		r.headers.Set(key, value)
	}
}

// WithAccept sets the Accept header.
func WithAccept(value string) ReqOption {
	return func(r *Request) {
		r.accept = value
	}
}

// WithRequestTimeout overrides the timeout for this specific request.
func WithRequestTimeout(d time.Duration) ReqOption {
	return func(r *Request) {
		r.timeout = d
	}
}

// WithRequestRetry overrides the retry policy for this request.
func WithRequestRetry(policy retry.Policy) ReqOption {
	return func(r *Request) {
		r.retryPolicy = policy
	}
}

// WithRequestRetryForce lets a non-idempotent request be retried.
func WithRequestRetryForce() ReqOption {
	return func(r *Request) {
		r.forceRetry = true
	}
}

// WithRequestBreaker toggles the circuit breaker for this request.
func WithRequestBreaker(enabled bool) ReqOption {
	return func(r *Request) {
		r.breakerToggle = &enabled
	}
}

// WithoutBearer sends the request without consulting the credential store,
// for anonymous endpoints such as login and registration.
func WithoutBearer() ReqOption {
	return func(r *Request) {
		r.anonymous = true
	}
}

// WithRaw sends body as is. An explicit Content-Type header wins over
// contentType.
func WithRaw(body []byte, contentType string) ReqOption {
	data := append([]byte(nil), body...)
	return func(r *Request) {
		r.body = &payload{data: data, contentType: contentType}
	}
}

// WithJSON encodes v as the JSON body and asks for JSON back unless an
// Accept value was already chosen.
func WithJSON(v any) ReqOption {
	return func(r *Request) {
		data, err := json.Marshal(v)
		r.body = &payload{data: data, contentType: "application/json", err: err}
		if r.accept == "" {
			r.accept = "application/json"
		}
	}
}

func withBodyError(err error) ReqOption {
	return func(r *Request) {
		r.body = &payload{err: err}
	}
}

func setDefaultHeader(h http.Header, key, value string) {
	if value != "" && h.Get(key) == "" {
		h.Set(key, value)
	}
}

// resolveURL joins a relative target onto base. Absolute targets and an
// empty base leave target unchanged.
func resolveURL(base, target string) string {
	if base == "" || isAbsoluteURL(target) {
		return target
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != ""
}
