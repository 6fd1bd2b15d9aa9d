package apic

import (
	"encoding/json"
	"io"
	"net/http"
)

// Response wraps an http.Response and buffers its body on first access.
type Response struct {
	raw    *http.Response
	body   []byte
	loaded bool
	err    error
}

func newResponse(resp *http.Response) *Response {
	return &Response{raw: resp}
}

func (r *Response) load() error {
	if r.loaded {
		return r.err
	}
	r.loaded = true
	if r.raw == nil || r.raw.Body == nil {
		return nil
	}
	defer func() { _ = r.raw.Body.Close() }()
	r.body, r.err = io.ReadAll(r.raw.Body)
	return r.err
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	if r.raw == nil {
		return 0
	}
	return r.raw.StatusCode
}

// Header returns the first value for the given header key.
func (r *Response) Header(key string) string {
	if r.raw == nil {
		return ""
	}
	return r.raw.Header.Get(key)
}

// Bytes returns a copy of the response body.
func (r *Response) Bytes() ([]byte, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return append([]byte(nil), r.body...), nil
}

// String returns the body as a string.
func (r *Response) String() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

// DecodeJSON decodes the response body into dest. An empty body yields
// io.EOF.
func (r *Response) DecodeJSON(dest any) error {
	if err := r.load(); err != nil {
		return err
	}
	if len(r.body) == 0 {
		return io.EOF
	}
	return json.Unmarshal(r.body, dest)
}

// Close releases the body without reading it.
func (r *Response) Close() error {
	if r.loaded || r.raw == nil || r.raw.Body == nil {
		return nil
	}
	r.loaded = true
	return r.raw.Body.Close()
}

// Raw exposes the underlying http.Response for advanced consumers.
func (r *Response) Raw() *http.Response {
	return r.raw
}
