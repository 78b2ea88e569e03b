package auth

import "time"

// RememberCookie is an outbound remember-cookie mutation: the value and
// expiry the HTTP layer should send to the client.
type RememberCookie struct {
	Value     string
	ExpiresAt time.Time
}

// Scope is the per-request identity cache. It carries the session state,
// the resolved principals, and any pending remember-cookie mutation. A
// request holds at most one user and one admin; the slots are independent.
//
// Scope replaces both the memoized current-user variable and the global
// current-admin reference of older designs. It is never shared across
// requests and needs no locking.
type Scope struct {
	Session *SessionState

	user  *User
	admin *Admin

	sessionChecked bool
	cookieChecked  bool

	rememberIn      string
	rememberOut     *RememberCookie
	rememberCleared bool
}

// NewScope builds a scope for one request. rememberCookie is the inbound
// value of the client's remember cookie, empty when absent.
func NewScope(session *SessionState, rememberCookie string) *Scope {
	if session == nil {
		session = NewSessionState()
	}
	return &Scope{
		Session:    session,
		rememberIn: rememberCookie,
	}
}

// CurrentUser returns the resolved user, nil when anonymous.
func (s *Scope) CurrentUser() *User {
	return s.user
}

// CurrentAdmin returns the resolved admin, nil when none.
func (s *Scope) CurrentAdmin() *Admin {
	return s.admin
}

// Actor returns the identity acting on this request: the user when one is
// resolved, otherwise the admin, otherwise the zero identity.
func (s *Scope) Actor() Identity {
	if s.user != nil {
		return UserIdentity(s.user)
	}
	if s.admin != nil {
		return AdminIdentity(s.admin)
	}
	return Identity{}
}

// RememberCookie returns the remember-cookie value visible to this request.
// Like a browser cookie jar, a value written during the request shadows the
// inbound one, and a deletion hides it.
func (s *Scope) RememberCookie() string {
	if s.rememberCleared {
		return ""
	}
	if s.rememberOut != nil {
		return s.rememberOut.Value
	}
	return s.rememberIn
}

// PendingRememberCookie reports an outbound cookie write, if any.
func (s *Scope) PendingRememberCookie() (*RememberCookie, bool) {
	if s.rememberCleared || s.rememberOut == nil {
		return nil, false
	}
	return s.rememberOut, true
}

// RememberCookieCleared reports whether the client cookie must be deleted.
func (s *Scope) RememberCookieCleared() bool {
	return s.rememberCleared
}

func (s *Scope) setUser(u *User) {
	s.user = u
}

func (s *Scope) clearUser() {
	s.user = nil
}

func (s *Scope) setAdmin(a *Admin) {
	s.admin = a
}

func (s *Scope) clearAdmin() {
	s.admin = nil
}

func (s *Scope) sendRememberCookie(value string, expiresAt time.Time) {
	s.rememberCleared = false
	s.rememberOut = &RememberCookie{Value: value, ExpiresAt: expiresAt}
}

func (s *Scope) deleteRememberCookie() {
	s.rememberOut = nil
	s.rememberCleared = true
}
