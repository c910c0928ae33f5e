// Package permissions layers the grant conventions of the permission
// model on top of the session's exact-match set: the global wildcard,
// manage grants, scope widening, and the superuser bypass.
package permissions

import (
	"strings"

	"atlas/internal/auth/models"
)

// The scope implied when a permission string omits its third segment.
const defaultScope = "all"

// Session is the slice of session state the checker reads.
type Session interface {
	HasPermission(permission string) bool
	User() (models.User, bool)
}

// Checker answers authorization questions for the current session.
type Checker struct {
	session Session
}

// NewChecker wraps a session.
func NewChecker(session Session) *Checker {
	return &Checker{session: session}
}

// Allows reports whether the session may perform permission, written
// as "resource:action" or "resource:action:scope". Grants are widened
// as follows: superusers and a literal "*" grant pass everything, a
// "resource:manage" grant covers every action on the resource at the
// matching scope, an "all" scope covers narrower scopes, and an "own"
// request is satisfied by a "department" or "assigned" grant.
func (c *Checker) Allows(permission string) bool {
	user, ok := c.session.User()
	if !ok {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	if c.session.HasPermission("*") || c.session.HasPermission(permission) {
		return true
	}

	parts := strings.Split(permission, ":")
	if len(parts) < 2 {
		return false
	}
	resource, action := parts[0], parts[1]
	scope := defaultScope
	if len(parts) > 2 && parts[2] != "" {
		scope = parts[2]
	}

	if c.session.HasPermission(resource + ":manage:" + defaultScope) {
		return true
	}
	if c.session.HasPermission(resource + ":manage:" + scope) {
		return true
	}
	if c.session.HasPermission(resource + ":" + action + ":" + defaultScope) {
		return true
	}
	if scope == "own" &&
		(c.session.HasPermission(resource+":"+action+":department") ||
			c.session.HasPermission(resource+":"+action+":assigned")) {
		return true
	}
	return c.session.HasPermission(resource + ":" + action)
}

// Any reports whether at least one of the permissions is allowed.
func (c *Checker) Any(permissions ...string) bool {
	for _, permission := range permissions {
		if c.Allows(permission) {
			return true
		}
	}
	return false
}

// All reports whether every one of the permissions is allowed.
func (c *Checker) All(permissions ...string) bool {
	for _, permission := range permissions {
		if !c.Allows(permission) {
			return false
		}
	}
	return true
}

// ResourceAccess summarizes what the session may do with one resource.
type ResourceAccess struct {
	CanCreate bool
	CanRead   bool
	CanUpdate bool
	CanDelete bool
	CanManage bool
}

// Resource evaluates the standard verbs for a resource in one call.
func (c *Checker) Resource(resource string) ResourceAccess {
	return ResourceAccess{
		CanCreate: c.Allows(resource + ":create"),
		CanRead:   c.Allows(resource + ":read"),
		CanUpdate: c.Allows(resource + ":update"),
		CanDelete: c.Allows(resource + ":delete"),
		CanManage: c.Allows(resource + ":manage"),
	}
}

// HasRole reports a role assignment under any of the three role
// fields a user record may carry.
func (c *Checker) HasRole(name string) bool {
	user, ok := c.session.User()
	if !ok {
		return false
	}
	for _, role := range user.RolesV2 {
		if role.Name == name {
			return true
		}
	}
	for _, role := range user.Roles {
		if role.Name == name {
			return true
		}
	}
	return user.Role != nil && user.Role.Name == name
}

// IsSuperuser reports the superuser flag of the signed-in user.
func (c *Checker) IsSuperuser() bool {
	user, ok := c.session.User()
	return ok && user.IsSuperuser
}

// IsActive reports the active flag of the signed-in user.
func (c *Checker) IsActive() bool {
	user, ok := c.session.User()
	return ok && user.IsActive
}

// DepartmentID returns the user's department, when assigned.
func (c *Checker) DepartmentID() (int64, bool) {
	user, ok := c.session.User()
	if !ok || user.DepartmentID == nil {
		return 0, false
	}
	return *user.DepartmentID, true
}
