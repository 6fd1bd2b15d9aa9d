package auth

import (
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
)

const (
	// DefaultMarker is the path fragment identifying the protected API surface.
	DefaultMarker = "/api/"

	// HeaderName is the header carrying the bearer credential.
	HeaderName = "Authorization"

	// placeholder is the stringified null a host may leave behind on logout.
	placeholder = "null"
)

// Outcome classifies what the policy decided for a single call.
type Outcome int

const (
	OutOfScope Outcome = iota
	Attached
	Missing
)

func (o Outcome) String() string {
	switch o {
	case Attached:
		return "attached"
	case Missing:
		return "missing"
	default:
		return "out_of_scope"
	}
}

// Decision is the result of running the policy against a call target.
// Name and Value are only set when Outcome is Attached.
type Decision struct {
	Outcome Outcome
	Target  string
	Name    string
	Value   string
}

// PolicyOption is a functional option applied to the Policy.
type PolicyOption func(*Policy)

// WithMarker overrides the path fragment used for the scope test.
func WithMarker(marker string) PolicyOption {
	return func(p *Policy) {
		if marker != "" {
			p.marker = marker
		}
	}
}

// WithExpiryCheck additionally rejects JWT credentials whose exp claim has
// passed. Off by default; opaque tokens are never rejected by it.
func WithExpiryCheck(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.checkExpiry = enabled
	}
}

// WithClock overrides the time source used by the expiry check.
func WithClock(clock func() time.Time) PolicyOption {
	return func(p *Policy) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// Policy decides whether an outgoing call gets a bearer credential and which.
// It holds no per-call state and is safe for concurrent use.
type Policy struct {
	source      CredentialSource
	marker      string
	checkExpiry bool
	clock       func() time.Time
}

// New constructs a Policy reading credentials from source.
func New(source CredentialSource, opts ...PolicyOption) (*Policy, error) {
	if source == nil {
		return nil, errors.New("credential source is required")
	}
	p := &Policy{
		source: source,
		marker: DefaultMarker,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Marker returns the configured scope marker.
func (p *Policy) Marker() string { return p.marker }

// InScope reports whether target addresses the protected API surface.
// Unrecognised target shapes are never in scope.
func (p *Policy) InScope(target any) bool {
	s, ok := TargetString(target)
	if !ok {
		return false
	}
	return strings.Contains(s, p.marker)
}

// CurrentCredential reads the stored credential. Store faults are returned
// as-is.
func (p *Policy) CurrentCredential() (string, bool, error) {
	return p.source.CurrentCredential()
}

// Valid applies IsValid and, when enabled, the expiry check.
func (p *Policy) Valid(token string, present bool) bool {
	if !IsValid(token, present) {
		return false
	}
	if p.checkExpiry && expired(token, p.clock()) {
		return false
	}
	return true
}

// Authorize runs the full policy for target.
func (p *Policy) Authorize(target any) (Decision, error) {
	s, _ := TargetString(target)
	d := Decision{Outcome: OutOfScope, Target: s}
	if !p.InScope(target) {
		return d, nil
	}

	token, present, err := p.CurrentCredential()
	if err != nil {
		return d, err
	}
	if !p.Valid(token, present) {
		d.Outcome = Missing
		return d, nil
	}

	d.Outcome = Attached
	d.Name, d.Value = BuildAuthHeader(token)
	return d, nil
}

// IsValid is a shallow usability check: the credential must be present, not
// the "null" placeholder, and not blank.
func IsValid(token string, present bool) bool {
	if !present || token == "" || token == placeholder {
		return false
	}
	return len(strings.TrimSpace(token)) > 0
}

// BuildAuthHeader returns the header name and value for token.
func BuildAuthHeader(token string) (string, string) {
	return HeaderName, "Bearer " + token
}

// TargetString normalises the supported target shapes to a string.
func TargetString(target any) (string, bool) {
	switch v := target.(type) {
	case string:
		return v, true
	case *url.URL:
		if v == nil {
			return "", false
		}
		return v.String(), true
	case url.URL:
		return v.String(), true
	case *http.Request:
		if v == nil || v.URL == nil {
			return "", false
		}
		return v.URL.String(), true
	case interface{ URL() string }:
		if isNilPointer(v) {
			return "", false
		}
		return v.URL(), true
	default:
		return "", false
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
