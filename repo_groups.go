package auth

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrGroupNotFound is returned when a group lookup misses.
var ErrGroupNotFound = goerrors.New("group not found", goerrors.CategoryNotFound).
	WithTextCode("GROUP_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// Groups manages instance-scoped groups and their memberships.
type Groups interface {
	repository.Repository[*Group]

	GetByID(ctx context.Context, id uuid.UUID) (*Group, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Group, error)

	// AddMember is idempotent: joining a group twice is a no-op.
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	AddMemberTx(ctx context.Context, tx bun.IDB, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMemberTx(ctx context.Context, tx bun.IDB, groupID, userID uuid.UUID) error
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	IsMemberTx(ctx context.Context, tx bun.IDB, groupID, userID uuid.UUID) (bool, error)
}

type groups struct {
	repository.Repository[*Group]
	db *bun.DB
}

var _ Groups = (*groups)(nil)

func NewGroupsRepository(db *bun.DB) Groups {
	repo := repository.NewRepository[*Group](db, repository.ModelHandlers[*Group]{
		NewRecord: func() *Group { return &Group{} },
		GetID: func(g *Group) uuid.UUID {
			if g == nil {
				return uuid.Nil
			}
			return g.ID
		},
		SetID: func(g *Group, id uuid.UUID) {
			if g != nil {
				g.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &groups{
		Repository: repo,
		db:         db,
	}
}

func (g *groups) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	return g.GetByIDTx(ctx, g.db, id)
}

func (g *groups) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Group, error) {
	record := &Group{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load group")
	}

	return record, nil
}

func (g *groups) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return g.AddMemberTx(ctx, g.db, groupID, userID)
}

func (g *groups) AddMemberTx(ctx context.Context, tx bun.IDB, groupID, userID uuid.UUID) error {
	membership := &UserGroup{
		UserID:  userID,
		GroupID: groupID,
	}

	_, err := tx.NewInsert().
		Model(membership).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to add group member")
	}

	return nil
}

func (g *groups) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return g.RemoveMemberTx(ctx, g.db, groupID, userID)
}

func (g *groups) RemoveMemberTx(ctx context.Context, tx bun.IDB, groupID, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*UserGroup)(nil)).
		Where("user_id = ?", userID).
		Where("group_id = ?", groupID).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove group member")
	}

	return nil
}

func (g *groups) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return g.IsMemberTx(ctx, g.db, groupID, userID)
}

func (g *groups) IsMemberTx(ctx context.Context, tx bun.IDB, groupID, userID uuid.UUID) (bool, error) {
	count, err := tx.NewSelect().
		Model((*UserGroup)(nil)).
		Where("user_id = ?", userID).
		Where("group_id = ?", groupID).
		Count(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check membership")
	}

	return count > 0, nil
}
