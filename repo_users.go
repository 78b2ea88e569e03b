package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the token store for the auth core: besides generic persistence it
// owns the remember-token lifecycle and the login/logout timestamps.
type Users interface {
	repository.Repository[*User]

	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByRememberToken(ctx context.Context, token string) (*User, error)
	GetByRememberTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	GetByLogin(ctx context.Context, identifier string) (*User, error)
	GetByLoginTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)

	// Remember issues a brand new token with a fresh expiry window.
	Remember(ctx context.Context, user *User, window time.Duration) error
	RememberTx(ctx context.Context, tx bun.IDB, user *User, window time.Duration) error
	// RefreshToken rotates the token value, keeping the current expiry.
	RefreshToken(ctx context.Context, user *User) error
	RefreshTokenTx(ctx context.Context, tx bun.IDB, user *User) error
	// Forget clears the stored token and its expiry.
	Forget(ctx context.Context, user *User) error
	ForgetTx(ctx context.Context, tx bun.IDB, user *User) error

	TrackLogin(ctx context.Context, user *User) error
	TrackLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackLogout(ctx context.Context, user *User) error
	TrackLogoutTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// NewRememberToken generates a remember-token value. Two UUIDs worth of
// randomness, hex only so the value is cookie and URL safe.
func NewRememberToken() string {
	raw := uuid.NewString() + uuid.NewString()
	return strings.ReplaceAll(raw, "-", "")
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

func (a *users) GetByRememberToken(ctx context.Context, token string) (*User, error) {
	return a.GetByRememberTokenTx(ctx, a.db, token)
}

func (a *users) GetByRememberTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	if token == "" {
		return nil, ErrIdentityNotFound
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.remember_token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user by remember token")
	}

	return record, nil
}

func (a *users) GetByLogin(ctx context.Context, identifier string) (*User, error) {
	return a.GetByLoginTx(ctx, a.db, identifier)
}

// GetByLoginTx matches the identifier against email first, then username.
func (a *users) GetByLoginTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrIdentityNotFound
	}

	for _, column := range []string{"email", "username"} {
		record := &User{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias."+column+" = ?", identifier).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user by login")
		}

		return record, nil
	}

	return nil, ErrIdentityNotFound
}

func (a *users) Remember(ctx context.Context, user *User, window time.Duration) error {
	return a.RememberTx(ctx, a.db, user, window)
}

func (a *users) RememberTx(ctx context.Context, tx bun.IDB, user *User, window time.Duration) error {
	token := NewRememberToken()
	expiresAt := a.now().Add(window)

	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"remember_token" = ?,
			"remember_token_expires_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, expiresAt, user.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store remember token")
	}

	user.RememberToken = token
	user.RememberTokenExpiresAt = &expiresAt
	return nil
}

func (a *users) RefreshToken(ctx context.Context, user *User) error {
	return a.RefreshTokenTx(ctx, a.db, user)
}

func (a *users) RefreshTokenTx(ctx context.Context, tx bun.IDB, user *User) error {
	token := NewRememberToken()

	// the expiry column stays untouched: a refresh re-uses the window that
	// was granted when the token was first issued
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET "remember_token" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, user.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh remember token")
	}

	user.RememberToken = token
	return nil
}

func (a *users) Forget(ctx context.Context, user *User) error {
	return a.ForgetTx(ctx, a.db, user)
}

func (a *users) ForgetTx(ctx context.Context, tx bun.IDB, user *User) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"remember_token" = '',
			"remember_token_expires_at" = NULL
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, user.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear remember token")
	}

	user.RememberToken = ""
	user.RememberTokenExpiresAt = nil
	return nil
}

func (a *users) TrackLogin(ctx context.Context, user *User) error {
	return a.TrackLoginTx(ctx, a.db, user)
}

func (a *users) TrackLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	lastLogin := a.now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"last_login_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, lastLogin, user.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}

	user.LastLoginAt = &lastLogin
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	return nil
}

func (a *users) TrackLogout(ctx context.Context, user *User) error {
	return a.TrackLogoutTx(ctx, a.db, user)
}

func (a *users) TrackLogoutTx(ctx context.Context, tx bun.IDB, user *User) error {
	lastLogout := a.now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET "last_logout_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, lastLogout, user.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track logout")
	}

	user.LastLogoutAt = &lastLogout
	return nil
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	attemptAt := a.now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, user.LoginAttempts+1, attemptAt, user.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
	}

	user.LoginAttempts++
	user.LoginAttemptAt = &attemptAt
	return nil
}
