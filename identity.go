package auth

import "github.com/google/uuid"

// IdentityKind discriminates the two principal types and doubles as the
// session slot key.
type IdentityKind string

const (
	KindUser  IdentityKind = "user"
	KindAdmin IdentityKind = "admin"
)

// Identity is a tagged union of the two principals. It replaces runtime
// type-dispatch on the login path: the union carries the value's own kind,
// while the session slot a login writes to is chosen by the caller.
type Identity struct {
	kind  IdentityKind
	user  *User
	admin *Admin
}

// Anonymous is the zero identity; logging it in clears the targeted slot.
func Anonymous() Identity {
	return Identity{}
}

func UserIdentity(u *User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{kind: KindUser, user: u}
}

func AdminIdentity(a *Admin) Identity {
	if a == nil {
		return Identity{}
	}
	return Identity{kind: KindAdmin, admin: a}
}

func (i Identity) Kind() IdentityKind {
	return i.kind
}

func (i Identity) IsZero() bool {
	return i.user == nil && i.admin == nil
}

func (i Identity) User() (*User, bool) {
	return i.user, i.user != nil
}

func (i Identity) Admin() (*Admin, bool) {
	return i.admin, i.admin != nil
}

// ID returns the principal's id, false for the zero identity.
func (i Identity) ID() (uuid.UUID, bool) {
	switch {
	case i.user != nil:
		return i.user.ID, true
	case i.admin != nil:
		return i.admin.ID, true
	default:
		return uuid.Nil, false
	}
}
