package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	InstanceSlug string `json:"instance"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PhoneRegion  string `json:"phone_region"`
	Role         string `json:"role"`
	Password     string `json:"password"`
	UseHashid    bool
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates a user inside the instance named by the
// message. New users start as members.
type RegisterUserHandler struct {
	repo RepositoryManager
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		instance, err := h.repo.Instances().GetByIdentifierTx(ctx, tx, event.InstanceSlug)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "unknown instance")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		phone, err := normalizePhone(event.Phone, event.PhoneRegion)
		if err != nil {
			return err
		}

		user.PasswordHash = hash
		user.InstanceID = instance.ID
		user.Email = event.Email
		user.Phone = phone
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = getUsername(event.Username, event.Email)
		user.Role = getRole(event.Role)
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

func getRole(role string) UserRole {
	switch role {
	case RoleGuest, RoleMember, RoleOwner:
		return role
	default:
		return RoleMember
	}
}

// normalizePhone parses and formats the phone number as E.164. Empty input
// is fine, the field is optional.
func normalizePhone(phone, region string) (string, error) {
	if phone == "" {
		return "", nil
	}

	if region == "" {
		region = "US"
	}

	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number")
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
