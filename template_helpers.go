package auth

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"
var TemplateAdminKey = "current_admin"

// TemplateHelpers returns a map of helper functions and data that can be used
// with a renderer's global-data option for authentication-related template
// functionality.
//
// In templates, you can then use:
//
//	{% if logged_in(current_user) %}
//	{% if has_role(current_user, "owner") %}
//	{% if is_at_least(current_user, "member") %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"logged_in":   isAuthenticated,
		"has_role":    hasRole,
		"is_at_least": isAtLeast,

		// Role constants for easy template access
		"roles": map[string]string{
			"guest":  RoleGuest,
			"member": RoleMember,
			"owner":  RoleOwner,
		},
	}
}

// TemplateHelpersWithScope injects the resolved principals of the request so
// templates can reference current_user and current_admin directly.
func TemplateHelpersWithScope(scope *Scope) map[string]any {
	helpers := TemplateHelpers()
	if scope != nil {
		helpers[TemplateUserKey] = scope.CurrentUser()
		helpers[TemplateAdminKey] = scope.CurrentAdmin()
	}
	return helpers
}

// TemplateHelpersWithRouter reads the Scope the middleware stored on the
// router context. It returns plain helpers when the middleware did not run.
func TemplateHelpersWithRouter(ctx router.Context) map[string]any {
	return TemplateHelpersWithScope(ScopeFrom(ctx))
}

// isAuthenticated checks if the provided user object is not nil
func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	case *Admin:
		return u != nil
	case Admin:
		return true
	default:
		return false
	}
}

// hasRole checks if the user has the specified role
func hasRole(user any, role string) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.Role == role
	case User:
		return u.Role == role
	default:
		return false
	}
}

// isAtLeast checks if the user's role is at least the minimum required level
func isAtLeast(user any, minRole string) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return roleRank(u.Role) >= roleRank(minRole)
	case User:
		return roleRank(u.Role) >= roleRank(minRole)
	default:
		return false
	}
}

func roleRank(role UserRole) int {
	switch role {
	case RoleOwner:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}
