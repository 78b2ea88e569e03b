package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Admins() Admins
	Groups() Groups
	Instances() repository.Repository[*Instance]
}

func NewInstancesRepository(db *bun.DB) repository.Repository[*Instance] {
	handlers := repository.ModelHandlers[*Instance]{
		NewRecord: func() *Instance {
			return &Instance{}
		},
		GetID: func(record *Instance) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Instance, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db        *bun.DB
	users     Users
	admins    Admins
	groups    Groups
	instances repository.Repository[*Instance]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	// register the m2m model so membership joins resolve
	db.RegisterModel((*UserGroup)(nil))

	return &mngr{
		db:        db,
		users:     NewUsersRepository(db),
		admins:    NewAdminsRepository(db),
		groups:    NewGroupsRepository(db),
		instances: NewInstancesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}

	if m.groups == nil {
		return errors.New("repository groups should be initialized")
	}

	if m.instances == nil {
		return errors.New("repository instances should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Admins() Admins {
	return m.admins
}

func (m mngr) Groups() Groups {
	return m.groups
}

func (m mngr) Instances() repository.Repository[*Instance] {
	return m.instances
}
