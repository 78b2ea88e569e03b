package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultRememberWindow is how long a freshly issued remember token lives.
const DefaultRememberWindow = 14 * 24 * time.Hour

// Auther implements the session/cookie login lifecycle over a token store
// (Users repository) and a SessionStore. The per-request state lives in the
// Scope passed to each call; Auther itself is safe for concurrent use.
type Auther struct {
	repo           RepositoryManager
	sessions       SessionStore
	rememberWindow time.Duration
	logger         Logger
	now            func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, sessions SessionStore, cfg Config) *Auther {
	window := DefaultRememberWindow
	if cfg != nil && cfg.GetRememberTokenDuration() > 0 {
		window = time.Duration(cfg.GetRememberTokenDuration()) * time.Hour
	}

	return &Auther{
		repo:           repo,
		sessions:       sessions,
		rememberWindow: window,
		logger:         defLogger{},
		now:            time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// WithClock overrides the time source, used by tests.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// RememberWindow returns the expiry window granted to new remember tokens.
func (s *Auther) RememberWindow() time.Duration {
	return s.rememberWindow
}

// ResolveSession establishes identities from the session slots. The user and
// admin checks are independent: a request may resolve both. A slot pointing
// at a deleted identity fails with ErrIdentityNotFound and the error
// propagates, the caller decides how to surface it.
func (s *Auther) ResolveSession(ctx context.Context, scope *Scope) error {
	if scope.sessionChecked {
		return nil
	}
	scope.sessionChecked = true

	if id := scope.Session.Slot(KindUser); id != nil {
		user, err := s.repo.Users().GetByID(ctx, *id)
		if err != nil {
			return err
		}
		if err := s.Login(ctx, scope, UserIdentity(user), KindUser); err != nil {
			return err
		}
	}

	if id := scope.Session.Slot(KindAdmin); id != nil {
		admin, err := s.repo.Admins().GetByID(ctx, *id)
		if err != nil {
			return err
		}
		if err := s.Login(ctx, scope, AdminIdentity(admin), KindAdmin); err != nil {
			return err
		}
	}

	return nil
}

// ResolveCookie tries to establish a user from the remember cookie. On a
// match with a live token the user is logged in and the token is silently
// refreshed, keeping its expiry. A cookie that matches nothing leaves every
// piece of state untouched.
func (s *Auther) ResolveCookie(ctx context.Context, scope *Scope) (*User, error) {
	if scope.cookieChecked {
		return scope.CurrentUser(), nil
	}
	scope.cookieChecked = true

	token := scope.RememberCookie()
	if token == "" {
		return nil, nil
	}

	user, err := s.repo.Users().GetByRememberToken(ctx, token)
	if err != nil {
		if IsIdentityNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if !user.RememberTokenValid(s.now()) {
		return nil, nil
	}

	if err := s.Login(ctx, scope, UserIdentity(user), KindUser); err != nil {
		return nil, err
	}

	// freshen cookie token, keeping the expiry date
	if err := s.HandleRememberCookie(ctx, scope, false); err != nil {
		return nil, err
	}

	return scope.CurrentUser(), nil
}

// Resolve tries the session first, then the remember cookie. The cookie is
// only consulted when the session yielded no user.
func (s *Auther) Resolve(ctx context.Context, scope *Scope) error {
	if err := s.ResolveSession(ctx, scope); err != nil {
		return err
	}

	if scope.CurrentUser() == nil {
		if _, err := s.ResolveCookie(ctx, scope); err != nil {
			return err
		}
	}

	return nil
}

// IsLoggedIn reports whether an identity of the given kind is established,
// resolving it if needed. Admins only ever log in through the session.
func (s *Auther) IsLoggedIn(ctx context.Context, scope *Scope, kind IdentityKind) (bool, error) {
	switch kind {
	case KindAdmin:
		if err := s.ResolveSession(ctx, scope); err != nil {
			return false, err
		}
		return scope.CurrentAdmin() != nil, nil
	default:
		if err := s.Resolve(ctx, scope); err != nil {
			return false, err
		}
		return scope.CurrentUser() != nil, nil
	}
}

// Login writes the identity's id into the session slot named by slot and
// caches the identity on the scope. The slot key follows the caller's
// choice while the cache entry follows the identity's own kind, so an admin
// session slot can carry a user id during impersonation without clobbering
// the admin cache. A user login also stamps last_login and persists it.
// Logging in the zero identity clears the slot and its cache entry.
func (s *Auther) Login(ctx context.Context, scope *Scope, identity Identity, slot IdentityKind) error {
	if identity.IsZero() {
		scope.Session.SetSlot(slot, nil)
		switch slot {
		case KindAdmin:
			scope.clearAdmin()
		default:
			scope.clearUser()
		}
		return nil
	}

	id, _ := identity.ID()
	scope.Session.SetSlot(slot, &id)

	if user, ok := identity.User(); ok {
		if err := s.repo.Users().TrackLogin(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to stamp login")
		}
		scope.setUser(user)
		return nil
	}

	if admin, ok := identity.Admin(); ok {
		scope.setAdmin(admin)
	}

	return nil
}

// LogoutKeepingSession logs the current user out without rotating the
// session id: last_logout is stamped, the stored remember token is cleared,
// the client cookie is deleted, and BOTH session slots are emptied. The
// session itself survives so signed per-session state is not wrecked.
func (s *Auther) LogoutKeepingSession(ctx context.Context, scope *Scope) error {
	if user := scope.CurrentUser(); user != nil {
		if err := s.repo.Users().TrackLogout(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to stamp logout")
		}
		if err := s.repo.Users().Forget(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to forget remember token")
		}
	}

	if err := s.Login(ctx, scope, Anonymous(), KindUser); err != nil {
		return err
	}

	scope.deleteRememberCookie()
	scope.Session.ClearSlots()
	return nil
}

// LogoutKillingSession does a complete logout: everything the keeping
// variant does, plus rotating the session so the old id resolves to nothing.
func (s *Auther) LogoutKillingSession(ctx context.Context, scope *Scope) error {
	if err := s.LogoutKeepingSession(ctx, scope); err != nil {
		return err
	}

	next, err := s.sessions.Rotate(ctx, scope.Session)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate session")
	}

	scope.Session = next
	return nil
}

// CookieIsValid reports whether the remember cookie matches the current
// user's live stored token. Without intervening mutation the answer is
// stable within a request.
func (s *Auther) CookieIsValid(scope *Scope) bool {
	user := scope.CurrentUser()
	if user == nil {
		return false
	}

	return user.RememberTokenValid(s.now()) && scope.RememberCookie() == user.RememberToken
}

// HandleRememberCookie reconciles the client cookie with the stored token:
//
//   - no current user: nothing to do
//   - cookie valid: rotate the token value, keep the expiry, resend
//   - cookie invalid, wantNew: issue a new token with a fresh expiry ("remember me")
//   - cookie invalid, !wantNew: clear the stored token and delete the client
//     cookie ("forget me")
func (s *Auther) HandleRememberCookie(ctx context.Context, scope *Scope, wantNew bool) error {
	user := scope.CurrentUser()
	if user == nil {
		return nil
	}

	switch {
	case s.CookieIsValid(scope):
		if err := s.repo.Users().RefreshToken(ctx, user); err != nil {
			return err
		}
	case wantNew:
		if err := s.repo.Users().Remember(ctx, user, s.rememberWindow); err != nil {
			return err
		}
	default:
		if err := s.repo.Users().Forget(ctx, user); err != nil {
			return err
		}
		scope.deleteRememberCookie()
		return nil
	}

	scope.sendRememberCookie(user.RememberToken, *user.RememberTokenExpiresAt)
	return nil
}
