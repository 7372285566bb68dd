package auth

import (
	"context"

	"github.com/platinummonkey/festival/pkg/contextkeys"
)

// SecurityContext describes who is making a request. It is either
// Unauthenticated or Authenticated; no other implementations exist.
type SecurityContext interface {
	isSecurityContext()
	IsAuthenticated() bool
}

// Unauthenticated is the security context of an anonymous request
type Unauthenticated struct{}

func (Unauthenticated) isSecurityContext() {}

// IsAuthenticated always returns false
func (Unauthenticated) IsAuthenticated() bool { return false }

// Authenticated is the security context of a request with a resolved identity
type Authenticated struct {
	UserID   int64
	Username string
	Roles    Roles
}

func (Authenticated) isSecurityContext() {}

// IsAuthenticated always returns true
func (Authenticated) IsAuthenticated() bool { return true }

// WithSecurityContext attaches sc to ctx
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, contextkeys.SecurityKey, sc)
}

// SecurityContextFrom returns the security context attached to ctx, or
// Unauthenticated when none is present.
func SecurityContextFrom(ctx context.Context) SecurityContext {
	if sc, ok := ctx.Value(contextkeys.SecurityKey).(SecurityContext); ok && sc != nil {
		return sc
	}
	return Unauthenticated{}
}

// CurrentUser returns the authenticated identity of ctx, if any
func CurrentUser(ctx context.Context) (Authenticated, bool) {
	a, ok := SecurityContextFrom(ctx).(Authenticated)
	return a, ok
}
