package intercept

import (
	"context"
	"io"
	"net/http"
)

// Handle is a two-phase call: Open configures it, headers may be added until
// Send, and Send finalises the headers and performs the call.
type Handle interface {
	Open(method, url string) error
	SetRequestHeader(name, value string) error
	Send(ctx context.Context, body io.Reader) (*http.Response, error)
}

// TrackedHandle decorates a Handle with the URL it was last opened with and
// attaches the bearer credential at Send time.
type TrackedHandle struct {
	handle    Handle
	augmenter *Augmenter
	resolve   func(string) string
	url       string
}

// WrapOption configures a TrackedHandle.
type WrapOption func(*TrackedHandle)

// WithResolver maps the URL given to Open onto the URL the handle will
// actually send to, so scope is decided on the same form a Transport sees.
func WithResolver(resolve func(string) string) WrapOption {
	return func(t *TrackedHandle) {
		t.resolve = resolve
	}
}

// Wrap returns a TrackedHandle around h. A nil augmenter leaves every call
// untouched.
func Wrap(h Handle, a *Augmenter, opts ...WrapOption) *TrackedHandle {
	t := &TrackedHandle{handle: h, augmenter: a}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open delegates and records url once the handle accepted it. A failed Open
// forgets any earlier URL, so the next Send is never augmented for a target
// the handle may no longer point at.
func (t *TrackedHandle) Open(method, url string) error {
	if err := t.handle.Open(method, url); err != nil {
		t.url = ""
		return err
	}
	if t.resolve != nil {
		url = t.resolve(url)
	}
	t.url = url
	return nil
}

func (t *TrackedHandle) SetRequestHeader(name, value string) error {
	return t.handle.SetRequestHeader(name, value)
}

// Send attaches the credential when the captured URL is in scope and then
// delegates with body unchanged.
func (t *TrackedHandle) Send(ctx context.Context, body io.Reader) (*http.Response, error) {
	if t.url != "" && t.augmenter != nil {
		if err := t.augmenter.augment(t.url, pathwayHandle, t.handle.SetRequestHeader); err != nil {
			return nil, err
		}
	}
	return t.handle.Send(ctx, body)
}

// URL returns the URL captured by the last successful Open, after resolution.
func (t *TrackedHandle) URL() string { return t.url }

// Unwrap returns the decorated handle.
func (t *TrackedHandle) Unwrap() Handle { return t.handle }
