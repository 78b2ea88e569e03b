package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is returned when a session slot references an identity
// that no longer exists. It deliberately propagates to the caller instead of
// degrading to an anonymous request.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrSessionNotFound is returned by session stores for unknown session IDs.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryNotFound).
	WithTextCode("SESSION_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrUnableToDecodeSession means the session cookie carried an invalid token.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode("SESSION_DECODE").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated means no identity could be resolved for the request.
var ErrUnauthenticated = goerrors.New("login required", goerrors.CategoryAuth).
	WithTextCode("LOGIN_REQUIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorized means the resolved identity failed a capability check.
var ErrUnauthorized = goerrors.New("you are not authorized to view that page", goerrors.CategoryAuthz).
	WithTextCode("NOT_AUTHORIZED").
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password cannot be empty", goerrors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD").
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the generic credential failure.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// IsIdentityNotFound reports whether err is a stale-identity resolution failure.
func IsIdentityNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrIdentityNotFound) || goerrors.IsNotFound(err)
}
