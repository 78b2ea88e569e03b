package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

// RegisterMembershipRoutes mounts the group join/leave endpoints under an
// instance-scoped path. The routes require a logged in user, so mount them
// behind WithScope and RequireLogin.
func RegisterMembershipRoutes[T any](app router.Router[T], opts ...MembershipControllerOption) {
	controller := NewMembershipController(opts...)

	app.Post("/instances/:instance_id/groups/:group_id/memberships", controller.Create).
		SetName("membership.create")
	app.Post("/instances/:instance_id/groups/:group_id/memberships/delete", controller.Delete).
		SetName("membership.delete")
}

type MembershipController struct {
	Logger       Logger
	Repo         RepositoryManager
	Auther       HTTPAuthenticator
	ErrorHandler router.ErrorHandler
}

type MembershipControllerOption func(*MembershipController) *MembershipController

func NewMembershipController(opts ...MembershipControllerOption) *MembershipController {
	c := &MembershipController{
		Logger:       defLogger{},
		ErrorHandler: defaultControllerErrHandler,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in membership controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in membership controller...")
	}

	return c
}

// Create adds the target user to the group. The target defaults to the
// current user; acting on someone else requires the actor to be allowed to
// modify that user's record.
func (m *MembershipController) Create(ctx router.Context) error {
	req, err := m.memberRequest(ctx)
	if err != nil {
		return m.rejected(ctx, err)
	}

	join := JoinGroupHandler{repo: m.Repo}
	if err := join.Execute(ctx.Context(), JoinGroupMessage{
		InstanceID: req.instanceID,
		GroupID:    req.groupID,
		UserID:     req.target.ID,
	}); err != nil {
		m.Logger.Error("group join error: ", "error", err)
		return m.rejected(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "You have joined this group.",
	}).Redirect(groupPath(req.instanceID, req.groupID), fiber.StatusSeeOther)
}

// Delete removes the target user from the group.
func (m *MembershipController) Delete(ctx router.Context) error {
	req, err := m.memberRequest(ctx)
	if err != nil {
		return m.rejected(ctx, err)
	}

	leave := LeaveGroupHandler{repo: m.Repo}
	if err := leave.Execute(ctx.Context(), LeaveGroupMessage{
		InstanceID: req.instanceID,
		GroupID:    req.groupID,
		UserID:     req.target.ID,
	}); err != nil {
		m.Logger.Error("group leave error: ", "error", err)
		return m.rejected(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "You have left this group.",
	}).Redirect(groupPath(req.instanceID, req.groupID), fiber.StatusSeeOther)
}

type memberRequest struct {
	instanceID uuid.UUID
	groupID    uuid.UUID
	target     *User
}

func (m *MembershipController) memberRequest(ctx router.Context) (*memberRequest, error) {
	scope := ScopeFrom(ctx)
	if scope == nil {
		return nil, goerrors.New("scope middleware missing", goerrors.CategoryInternal)
	}

	instanceID, err := uuid.Parse(ctx.Param("instance_id"))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid instance id")
	}

	groupID, err := uuid.Parse(ctx.Param("group_id"))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid group id")
	}

	target := scope.CurrentUser()
	if raw := ctx.Query("user_id", ""); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user id")
		}
		target, err = m.Repo.Users().GetByID(ctx.Context(), userID)
		if err != nil {
			return nil, err
		}
	}

	if target == nil {
		return nil, ErrUnauthenticated
	}

	if target.InstanceID != instanceID {
		return nil, ErrIdentityNotFound
	}

	if !target.UpdatableBy(scope.Actor()) {
		return nil, ErrUnauthorized
	}

	return &memberRequest{
		instanceID: instanceID,
		groupID:    groupID,
		target:     target,
	}, nil
}

// rejected routes authorization failures through the flash-and-redirect
// path; everything else falls to the error handler.
func (m *MembershipController) rejected(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuthz, goerrors.CategoryAuth:
			return m.Auther.WithRejection(ctx, "")
		case goerrors.CategoryNotFound, goerrors.CategoryBadInput:
			return m.Auther.WithRejection(ctx, richErr.Message)
		}
	}
	return m.ErrorHandler(ctx, err)
}

func groupPath(instanceID, groupID uuid.UUID) string {
	return fmt.Sprintf("/instances/%s/groups/%s", instanceID, groupID)
}
