package auth

import (
	"context"
)

// Principal is the authenticated identity carried in the per-request
// context. A nil principal means anonymous.
type Principal struct {
	Login     string
	SuperUser bool
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal. The
// authentication middleware is the only writer; the context is dropped at
// request completion.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request principal, or nil for anonymous
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
