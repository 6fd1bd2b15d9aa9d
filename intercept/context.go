package intercept

import "context"

type bypassKey struct{}

// WithBypass marks requests built with ctx so that the transport middleware
// forwards them untouched. Used for calls whose Authorization header has
// already been decided elsewhere, and for anonymous calls such as login.
func WithBypass(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassKey{}, true)
}

// Bypassed reports whether ctx carries the bypass marker.
func Bypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}
