package apic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/eatgo/apic/intercept"
	"github.com/google/uuid"
	"github.com/gostratum/core/logx"
)

var (
	// ErrCallNotOpened is returned when a call is configured or sent before Open.
	ErrCallNotOpened = errors.New("call not opened")
	// ErrCallSent is returned when headers are set on, or Send is repeated
	// for, a call that has already been sent.
	ErrCallSent = errors.New("call already sent")
)

type callState int

const (
	callIdle callState = iota
	callOpened
	callSent
)

// Call is a two-phase request: Open sets method and URL, SetRequestHeader may
// be used until Send, and Send finalises the headers and performs the call.
// Re-opening resets the call. A Call is not safe for concurrent use.
type Call struct {
	client  *client
	id      string
	method  string
	url     string
	headers http.Header
	state   callState
}

var _ intercept.Handle = (*Call)(nil)

func newCall(c *client) *Call {
	return &Call{
		client:  c,
		id:      uuid.NewString(),
		headers: make(http.Header),
	}
}

// ID returns the identifier used for this call in log output.
func (c *Call) ID() string { return c.id }

// Open configures the call. Any headers set earlier are discarded.
func (c *Call) Open(method, url string) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return errors.New("call method is required")
	}
	c.method = method
	c.url = url
	c.headers = make(http.Header)
	c.state = callOpened
	return nil
}

// SetRequestHeader appends a header value to the pending request.
func (c *Call) SetRequestHeader(name, value string) error {
	switch c.state {
	case callIdle:
		return ErrCallNotOpened
	case callSent:
		return ErrCallSent
	}
	c.headers.Add(name, value)
	return nil
}

// Send performs the call with body. The request runs through the client's
// transport chain but never through its bearer middleware; a wrapping
// handle decides the Authorization header instead.
func (c *Call) Send(ctx context.Context, body io.Reader) (*http.Response, error) {
	switch c.state {
	case callIdle:
		return nil, ErrCallNotOpened
	case callSent:
		return nil, ErrCallSent
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = intercept.WithBypass(ctx)

	target := c.client.resolve(c.url)
	req, err := http.NewRequestWithContext(ctx, c.method, target, body)
	if err != nil {
		return nil, err
	}
	c.state = callSent
	req.Header = c.headers.Clone()
	setDefaultHeader(req.Header, "User-Agent", c.client.cfg.UserAgent)

	c.client.logger.Debug("sending call",
		logx.String("call_id", c.id),
		logx.String("method", c.method),
		logx.String("url", target),
	)
	return c.client.httpClient.Do(req)
}
