package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RouteAuthenticator binds the auth core to HTTP: it builds a Scope per
// request from the signed session cookie, flushes session and remember
// cookie mutations after the handler ran, and provides the login gates.
type RouteAuthenticator struct {
	auth         Authenticator
	verifier     IdentityVerifier
	sessions     SessionStore
	tokens       *TokenService
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

func NewHTTPAuthenticator(auther Authenticator, verifier IdentityVerifier, sessions SessionStore, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, goerrors.New("authenticator is required", goerrors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		auth:     auther,
		verifier: verifier,
		sessions: sessions,
		cfg:      cfg,
		tokens:   NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetSessionDuration(), cfg.GetIssuer(), nil),
		Logger:   defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// WithScope returns the middleware every authenticated route needs: it
// restores the session from the cookie, attaches the Scope to the request,
// and flushes cookie/session mutations once the handler returns.
func (a *RouteAuthenticator) WithScope() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			scope := a.beginScope(c)

			c.Locals(ScopeLocalsKey, scope)
			c.SetContext(WithScopeContext(c.Context(), scope))

			if err := next(c); err != nil {
				return err
			}

			return a.flushScope(c, scope)
		}
	}
}

func (a *RouteAuthenticator) beginScope(c router.Context) *Scope {
	var state *SessionState

	if raw := c.Cookies(a.cfg.GetSessionCookieName()); raw != "" {
		if sessionID, err := a.tokens.SessionIDFromToken(raw); err == nil {
			loaded, err := a.sessions.Get(c.Context(), sessionID)
			if err == nil {
				state = loaded
			} else if !errors.Is(err, ErrSessionNotFound) {
				a.Logger.Warn("session load failed", "error", err)
			}
		} else {
			a.Logger.Debug("discarding invalid session cookie")
		}
	}

	return NewScope(state, c.Cookies(a.cfg.GetRememberCookieName()))
}

func (a *RouteAuthenticator) flushScope(c router.Context, scope *Scope) error {
	session := scope.Session

	if session.Dirty() {
		if err := a.sessions.Save(c.Context(), session); err != nil {
			return err
		}
	}

	// covers both sessions created this request and rotated ones: the
	// client holds no cookie for them yet
	if session.Fresh() && session.Persisted() {
		if err := a.sendSessionCookie(c, session.ID); err != nil {
			return err
		}
	}

	if rc, ok := scope.PendingRememberCookie(); ok {
		c.Cookie(&router.Cookie{
			Name:     a.cfg.GetRememberCookieName(),
			Value:    rc.Value,
			Expires:  rc.ExpiresAt,
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Lax",
		})
	} else if scope.RememberCookieCleared() {
		a.cookieDel(c, a.cfg.GetRememberCookieName())
	}

	return nil
}

func (a *RouteAuthenticator) sendSessionCookie(c router.Context, sessionID string) error {
	signed, err := a.tokens.SignSessionID(sessionID)
	if err != nil {
		return err
	}

	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetSessionCookieName(),
		Value:    signed,
		Expires:  time.Now().Add(a.tokens.Duration()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
	return nil
}

// RequireLogin redirects anonymous requests to the login page, remembering
// where they wanted to go. Stale session ids propagate to the ErrorHandler.
func (a *RouteAuthenticator) RequireLogin() router.MiddlewareFunc {
	return a.requireKind(KindUser, func() string { return a.cfg.GetLoginRoute() })
}

// RequireAdminLogin gates admin-only routes. Only the session is consulted.
func (a *RouteAuthenticator) RequireAdminLogin() router.MiddlewareFunc {
	return a.requireKind(KindAdmin, func() string { return a.cfg.GetAdminLoginRoute() })
}

func (a *RouteAuthenticator) requireKind(kind IdentityKind, loginRoute func() string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			scope := ScopeFrom(c)
			if scope == nil {
				return a.ErrorHandler(c, goerrors.New("scope middleware missing", goerrors.CategoryInternal))
			}

			ok, err := a.auth.IsLoggedIn(c.Context(), scope, kind)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			if !ok {
				a.SetRedirect(c)

				statusCode := http.StatusSeeOther
				if c.Method() == string(router.GET) {
					statusCode = http.StatusFound
				}
				return c.Redirect(loginRoute(), statusCode)
			}

			return next(c)
		}
	}
}

// Login verifies the payload's credentials and establishes the user on both
// the session and, when remember-me was requested, the remember cookie.
func (a *RouteAuthenticator) Login(c router.Context, payload LoginPayload) error {
	scope := ScopeFrom(c)
	if scope == nil {
		return goerrors.New("scope middleware missing", goerrors.CategoryInternal)
	}

	user, err := a.verifier.VerifyUser(c.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return goerrors.Wrap(err, goerrors.CategoryAuth, "err authenticating payload")
	}

	if err := a.auth.Login(c.Context(), scope, UserIdentity(user), KindUser); err != nil {
		return err
	}

	return a.auth.HandleRememberCookie(c.Context(), scope, payload.GetRememberMe())
}

// LoginAdmin verifies admin credentials and sets the admin session slot.
// There is no remember-cookie path for admins.
func (a *RouteAuthenticator) LoginAdmin(c router.Context, payload LoginPayload) error {
	scope := ScopeFrom(c)
	if scope == nil {
		return goerrors.New("scope middleware missing", goerrors.CategoryInternal)
	}

	admin, err := a.verifier.VerifyAdmin(c.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Admin login error: %s", err)
		return goerrors.Wrap(err, goerrors.CategoryAuth, "err authenticating payload")
	}

	return a.auth.Login(c.Context(), scope, AdminIdentity(admin), KindAdmin)
}

// Logout logs the current user out; killSession additionally rotates the
// session id to defeat fixation.
func (a *RouteAuthenticator) Logout(c router.Context, killSession bool) error {
	scope := ScopeFrom(c)
	if scope == nil {
		return goerrors.New("scope middleware missing", goerrors.CategoryInternal)
	}

	if err := a.auth.Resolve(c.Context(), scope); err != nil && !IsIdentityNotFound(err) {
		return err
	}

	if killSession {
		return a.auth.LogoutKillingSession(c.Context(), scope)
	}
	return a.auth.LogoutKeepingSession(c.Context(), scope)
}

// WithRejection surfaces a failed capability check: flash the error and
// send the user back where they came from, or to the configured fallback
// when there is no referrer.
func (a *RouteAuthenticator) WithRejection(c router.Context, message string) error {
	if message == "" {
		message = "You are not authorized to view that page."
	}

	target := c.Referer()
	if target == "" {
		target = a.cfg.GetRejectedRouteDefault()
	}

	return flash.WithError(c, router.ViewContext{
		"error_message": message,
	}).Redirect(target, fiber.StatusSeeOther)
}

func (a *RouteAuthenticator) GetRedirect(c router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if r == "" && len(def) > 0 {
		return def[0]
	}
	a.cookieDel(c, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(c router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	refererHeader := c.Referer()

	r := c.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(c, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(c router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"Auth error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"path", c.OriginalURL(),
	)

	switch richErr.Category {
	case goerrors.CategoryAuth:
		a.SetRedirect(c)

		statusCode := http.StatusSeeOther
		if c.Method() == string(router.GET) {
			statusCode = http.StatusFound
		}
		return c.Redirect(a.cfg.GetLoginRoute(), statusCode)
	case goerrors.CategoryAuthz:
		return a.WithRejection(c, richErr.Message)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
