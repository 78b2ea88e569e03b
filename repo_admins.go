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

// Admins is the persistence surface for administrator accounts.
type Admins interface {
	repository.Repository[*Admin]

	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Admin, error)
	GetByLogin(ctx context.Context, identifier string) (*Admin, error)
	GetByLoginTx(ctx context.Context, tx bun.IDB, identifier string) (*Admin, error)
	TrackLogin(ctx context.Context, admin *Admin) error
	TrackLoginTx(ctx context.Context, tx bun.IDB, admin *Admin) error
}

type admins struct {
	repository.Repository[*Admin]
	db  *bun.DB
	now func() time.Time
}

var _ Admins = (*admins)(nil)

func NewAdminsRepository(db *bun.DB) Admins {
	repo := repository.NewRepository[*Admin](db, repository.ModelHandlers[*Admin]{
		NewRecord: func() *Admin { return &Admin{} },
		GetID: func(a *Admin) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Admin, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &admins{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *admins) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *admins) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Admin, error) {
	record := &Admin{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load admin")
	}

	return record, nil
}

func (a *admins) GetByLogin(ctx context.Context, identifier string) (*Admin, error) {
	return a.GetByLoginTx(ctx, a.db, identifier)
}

func (a *admins) GetByLoginTx(ctx context.Context, tx bun.IDB, identifier string) (*Admin, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrIdentityNotFound
	}

	for _, column := range []string{"email", "username"} {
		record := &Admin{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias."+column+" = ?", identifier).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load admin by login")
		}

		return record, nil
	}

	return nil, ErrIdentityNotFound
}

func (a *admins) TrackLogin(ctx context.Context, admin *Admin) error {
	return a.TrackLoginTx(ctx, a.db, admin)
}

func (a *admins) TrackLoginTx(ctx context.Context, tx bun.IDB, admin *Admin) error {
	lastLogin := a.now()
	_, err := tx.NewRaw(`
		UPDATE "admins" AS "adm"
		SET "last_login_at" = ?
		WHERE
			("adm".id = ?)
			AND "adm"."deleted_at" IS NULL;
	`, lastLogin, admin.ID).Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track admin login")
	}

	admin.LastLoginAt = &lastLogin
	return nil
}
