package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximum number of attempts a user gets
// in a cool down period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// UserProvider verifies credentials against the repositories. It implements
// IdentityVerifier and enforces the login attempt throttle for users.
type UserProvider struct {
	repo   RepositoryManager
	logger Logger
}

var _ IdentityVerifier = (*UserProvider)(nil)

// NewUserProvider will create a new UserProvider
func NewUserProvider(repo RepositoryManager) *UserProvider {
	return &UserProvider{
		repo:   repo,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyUser will find the user, compare the password, and return the record
func (u *UserProvider) VerifyUser(ctx context.Context, identifier, password string) (*User, error) {
	user, err := u.repo.Users().GetByLogin(ctx, identifier)
	if err != nil {
		if IsIdentityNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			user.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if user.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := u.repo.Users().TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	return user, nil
}

// VerifyAdmin checks admin credentials. No attempt throttle: admin accounts
// are few and operator managed.
func (u *UserProvider) VerifyAdmin(ctx context.Context, identifier, password string) (*Admin, error) {
	admin, err := u.repo.Admins().GetByLogin(ctx, identifier)
	if err != nil {
		if IsIdentityNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve admin during verification")
	}

	if err := ComparePasswordAndHash(password, admin.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	return admin, nil
}
