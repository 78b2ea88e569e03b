package auth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds methods to deal with the session/cookie login lifecycle.
// All operations act on the request's Scope; nothing is read from global state.
type Authenticator interface {
	Resolve(ctx context.Context, scope *Scope) error
	ResolveSession(ctx context.Context, scope *Scope) error
	ResolveCookie(ctx context.Context, scope *Scope) (*User, error)
	IsLoggedIn(ctx context.Context, scope *Scope, kind IdentityKind) (bool, error)
	Login(ctx context.Context, scope *Scope, identity Identity, slot IdentityKind) error
	LogoutKeepingSession(ctx context.Context, scope *Scope) error
	LogoutKillingSession(ctx context.Context, scope *Scope) error
	HandleRememberCookie(ctx context.Context, scope *Scope, wantNew bool) error
	CookieIsValid(scope *Scope) bool
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetRememberMe() bool
}

type HTTPAuthenticator interface {
	WithScope() router.MiddlewareFunc
	RequireLogin() router.MiddlewareFunc
	RequireAdminLogin() router.MiddlewareFunc
	Login(c router.Context, payload LoginPayload) error
	LoginAdmin(c router.Context, payload LoginPayload) error
	Logout(c router.Context, killSession bool) error
	WithRejection(c router.Context, message string) error
	SetRedirect(c router.Context)
	GetRedirect(c router.Context, def ...string) string
	GetRedirectOrDefault(c router.Context) string
}

// IdentityVerifier checks credentials and returns the matching principal.
type IdentityVerifier interface {
	VerifyUser(ctx context.Context, identifier, password string) (*User, error)
	VerifyAdmin(ctx context.Context, identifier, password string) (*Admin, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSessionCookieName() string
	GetRememberCookieName() string
	GetSessionDuration() int
	GetRememberTokenDuration() int
	GetIssuer() string
	GetLoginRoute() string
	GetAdminLoginRoute() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
