package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type JoinGroupMessage struct {
	InstanceID uuid.UUID `json:"instance_id"`
	GroupID    uuid.UUID `json:"group_id"`
	UserID     uuid.UUID `json:"user_id"`
}

func (e JoinGroupMessage) Type() string { return "group.join" }

// JoinGroupHandler adds a user to a group. Both records must belong to the
// instance named by the message; memberships never cross instances.
type JoinGroupHandler struct {
	repo RepositoryManager
}

func (h *JoinGroupHandler) Execute(ctx context.Context, event JoinGroupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during group join",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *JoinGroupHandler) execute(ctx context.Context, event JoinGroupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		group, user, err := loadMembershipPair(ctx, tx, h.repo, event.InstanceID, event.GroupID, event.UserID)
		if err != nil {
			return err
		}

		return h.repo.Groups().AddMemberTx(ctx, tx, group.ID, user.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "group join transaction failed")
	}

	return nil
}

type LeaveGroupMessage struct {
	InstanceID uuid.UUID `json:"instance_id"`
	GroupID    uuid.UUID `json:"group_id"`
	UserID     uuid.UUID `json:"user_id"`
}

func (e LeaveGroupMessage) Type() string { return "group.leave" }

// LeaveGroupHandler removes a user from a group under the same instance
// scoping rules as joining.
type LeaveGroupHandler struct {
	repo RepositoryManager
}

func (h *LeaveGroupHandler) Execute(ctx context.Context, event LeaveGroupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during group leave",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LeaveGroupHandler) execute(ctx context.Context, event LeaveGroupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		group, user, err := loadMembershipPair(ctx, tx, h.repo, event.InstanceID, event.GroupID, event.UserID)
		if err != nil {
			return err
		}

		return h.repo.Groups().RemoveMemberTx(ctx, tx, group.ID, user.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "group leave transaction failed")
	}

	return nil
}

func loadMembershipPair(ctx context.Context, tx bun.IDB, repo RepositoryManager, instanceID, groupID, userID uuid.UUID) (*Group, *User, error) {
	group, err := repo.Groups().GetByIDTx(ctx, tx, groupID)
	if err != nil {
		return nil, nil, err
	}

	if group.InstanceID != instanceID {
		return nil, nil, ErrGroupNotFound
	}

	user, err := repo.Users().GetByIDTx(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}

	if user.InstanceID != instanceID {
		return nil, nil, ErrIdentityNotFound
	}

	return group, user, nil
}
