package intercept_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/eatgo/apic/auth"
	"github.com/eatgo/apic/intercept"
	"github.com/gostratum/core/logx"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	logx.Logger

	mu      sync.Mutex
	entries []logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{Logger: logx.NewNoopLogger()}
}

func (r *recordingLogger) Info(msg string, _ ...logx.Field) { r.add("info", msg) }
func (r *recordingLogger) Warn(msg string, _ ...logx.Field) { r.add("warn", msg) }

func (r *recordingLogger) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg})
}

func (r *recordingLogger) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func newAugmenter(t *testing.T, source auth.CredentialSource, logger logx.Logger) *intercept.Augmenter {
	t.Helper()
	policy, err := auth.New(source)
	require.NoError(t, err)
	a, err := intercept.NewAugmenter(policy, logger)
	require.NoError(t, err)
	return a
}

func absent() auth.CredentialSource {
	return auth.SourceFunc(func() (string, bool, error) { return "", false, nil })
}

func failing(err error) auth.CredentialSource {
	return auth.SourceFunc(func() (string, bool, error) { return "", false, err })
}

var errStore = errors.New("credential store offline")

type captureTransport struct {
	requests []*http.Request
	err      error
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("ok")),
		Request:    req,
	}, nil
}

type openCall struct {
	method string
	url    string
}

// fakeHandle mimics a two-phase call object that only accepts headers
// between Open and Send.
type fakeHandle struct {
	opens   []openCall
	headers http.Header
	opened  bool
	sent    bool
	body    io.Reader
	openErr error
	sendErr error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{headers: make(http.Header)}
}

func (f *fakeHandle) Open(method, url string) error {
	f.opens = append(f.opens, openCall{method: method, url: url})
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	f.sent = false
	f.headers = make(http.Header)
	return nil
}

func (f *fakeHandle) SetRequestHeader(name, value string) error {
	if !f.opened || f.sent {
		return errors.New("invalid state")
	}
	f.headers.Add(name, value)
	return nil
}

func (f *fakeHandle) Send(_ context.Context, body io.Reader) (*http.Response, error) {
	f.body = body
	f.sent = true
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
}
