// Package intercept attaches the stored bearer credential to outgoing calls.
//
// Two call shapes are supported: single-shot requests flowing through an
// http.RoundTripper (Middleware, NewTransport, Install) and two-phase handles
// that are opened, configured and then sent (Wrap). Both run the same
// auth.Policy and only ever touch the Authorization header.
package intercept

import (
	"errors"

	"github.com/eatgo/apic/auth"
	"github.com/gostratum/core/logx"
)

const (
	pathwayTransport = "transport"
	pathwayHandle    = "handle"
)

// Augmenter couples a Policy with the logger used to trace its decisions.
type Augmenter struct {
	policy *auth.Policy
	logger logx.Logger
}

// NewAugmenter returns an Augmenter for policy. A nil logger discards traces.
func NewAugmenter(policy *auth.Policy, logger logx.Logger) (*Augmenter, error) {
	if policy == nil {
		return nil, errors.New("intercept: policy is required")
	}
	if logger == nil {
		logger = logx.NewNoopLogger()
	}
	return &Augmenter{policy: policy, logger: logger}, nil
}

// Policy returns the underlying policy.
func (a *Augmenter) Policy() *auth.Policy { return a.policy }

// augment decides for target and hands the header to set when a credential is
// attached. Errors from the store or from set are returned untouched.
func (a *Augmenter) augment(target any, pathway string, set func(name, value string) error) error {
	d, err := a.policy.Authorize(target)
	if err != nil {
		return err
	}

	switch d.Outcome {
	case auth.Attached:
		if err := set(d.Name, d.Value); err != nil {
			return err
		}
		a.logger.Info("bearer token attached",
			logx.String("target", d.Target),
			logx.String("pathway", pathway),
		)
	case auth.Missing:
		a.logger.Warn("no valid bearer token for api request",
			logx.String("target", d.Target),
			logx.String("pathway", pathway),
		)
	}
	return nil
}
