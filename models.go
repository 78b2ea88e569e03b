package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role within its instance
type UserRole = string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember is a member (i.e. view, edit own)
	RoleMember UserRole = "member"
	// RoleOwner owns the instance (i.e. view, edit, manage members)
	RoleOwner UserRole = "owner"
)

// Instance is a tenant: every user and group belongs to exactly one.
type Instance struct {
	bun.BaseModel `bun:"table:instances,alias:ins"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Slug          string     `bun:"slug,notnull,unique" json:"slug,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// User is the user model
type User struct {
	bun.BaseModel          `bun:"table:users,alias:usr"`
	ID                     uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	InstanceID             uuid.UUID  `bun:"instance_id,notnull,type:uuid" json:"instance_id,omitempty"`
	Instance               *Instance  `bun:"rel:belongs-to,join:instance_id=id" json:"instance,omitempty"`
	Role                   UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName              string     `bun:"first_name" json:"first_name,omitempty"`
	LastName               string     `bun:"last_name" json:"last_name,omitempty"`
	Username               string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email                  string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone                  string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash           string     `bun:"password_hash" json:"-"`
	RememberToken          string     `bun:"remember_token" json:"-"`
	RememberTokenExpiresAt *time.Time `bun:"remember_token_expires_at,nullzero" json:"-"`
	LastLoginAt            *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	LastLogoutAt           *time.Time `bun:"last_logout_at,nullzero" json:"last_logout_at,omitempty"`
	LoginAttempts          int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt         *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	Groups                 []*Group   `bun:"m2m:users_groups,join:User=Group" json:"groups,omitempty"`
	CreatedAt              *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt              *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt              *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RememberTokenValid reports whether the stored remember token can still be
// used to re-establish a session: non empty and not past its expiry.
func (u *User) RememberTokenValid(now time.Time) bool {
	if u == nil || u.RememberToken == "" {
		return false
	}
	if u.RememberTokenExpiresAt == nil {
		return false
	}
	return u.RememberTokenExpiresAt.After(now)
}

// UpdatableBy reports whether actor may modify this user. Admins always can,
// users can modify themselves, and owners can modify users of their instance.
func (u *User) UpdatableBy(actor Identity) bool {
	if u == nil || actor.IsZero() {
		return false
	}

	if _, ok := actor.Admin(); ok {
		return true
	}

	other, ok := actor.User()
	if !ok || other == nil {
		return false
	}

	if other.ID == u.ID {
		return true
	}

	return other.Role == RoleOwner && other.InstanceID == u.InstanceID
}

// Admin is a platform operator. Admins authenticate through the session only,
// the remember-cookie path never applies to them.
type Admin struct {
	bun.BaseModel `bun:"table:admins,alias:adm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Group is an instance-scoped collection of users.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:grp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	InstanceID    uuid.UUID  `bun:"instance_id,notnull,type:uuid" json:"instance_id,omitempty"`
	Instance      *Instance  `bun:"rel:belongs-to,join:instance_id=id" json:"instance,omitempty"`
	GroupType     string     `bun:"group_type,notnull" json:"group_type,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Members       []*User    `bun:"m2m:users_groups,join:Group=User" json:"members,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// UserGroup is the membership join table.
type UserGroup struct {
	bun.BaseModel `bun:"table:users_groups,alias:ug"`
	UserID        uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	GroupID       uuid.UUID  `bun:"group_id,pk,type:uuid" json:"group_id,omitempty"`
	Group         *Group     `bun:"rel:belongs-to,join:group_id=id" json:"group,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
