package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var scopeCtxKey = &contextKey{"scope"}

type contextKey struct {
	name string
}

// ScopeLocalsKey is the router locals key the scope middleware writes to.
var ScopeLocalsKey = "auth:scope"

// WithScopeContext sets the request Scope in the given context
func WithScopeContext(r context.Context, scope *Scope) context.Context {
	return context.WithValue(r, scopeCtxKey, scope)
}

// ScopeFromContext finds the scope from the context.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	raw, ok := ctx.Value(scopeCtxKey).(*Scope)
	return raw, ok
}

// ScopeFrom extracts the request Scope from the router context. It returns
// nil when the scope middleware did not run.
func ScopeFrom(c router.Context) *Scope {
	raw := c.Locals(ScopeLocalsKey)
	if raw == nil {
		return nil
	}
	scope, ok := raw.(*Scope)
	if !ok {
		return nil
	}
	return scope
}

// CurrentUserFromContext is a convenience accessor for handlers that only
// need the resolved user.
func CurrentUserFromContext(ctx context.Context) (*User, bool) {
	scope, ok := ScopeFromContext(ctx)
	if !ok || scope.CurrentUser() == nil {
		return nil, false
	}
	return scope.CurrentUser(), true
}

// CurrentAdminFromContext is a convenience accessor for the resolved admin.
func CurrentAdminFromContext(ctx context.Context) (*Admin, bool) {
	scope, ok := ScopeFromContext(ctx)
	if !ok || scope.CurrentAdmin() == nil {
		return nil, false
	}
	return scope.CurrentAdmin(), true
}
