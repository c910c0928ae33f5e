package models

import (
	"time"
)

// This file contains pure domain models for the authenticated session:
// entities that should not depend on transport or HTTP-specific concerns.
// Loose backend payload shapes are normalized into these structs at the
// API boundary, never in consuming code.

// User represents the authenticated end-user as reported by the backend.
// It is an immutable snapshot replaced wholesale on profile refresh.
type User struct {
	ID           int64
	Email        string
	FullName     string
	Phone        string
	IsActive     bool
	IsSuperuser  bool
	DepartmentID *int64

	// Two parallel role lists exist for historical reasons: Roles is the
	// legacy RBAC structure, RolesV2 the current one, and Role a single
	// legacy assignment still present on older accounts.
	Roles   []Role
	RolesV2 []Role
	Role    *Role

	Menus     []MenuItem
	CreatedAt time.Time
}

// Role is a named permission grant. Permissions may be empty when the
// backend returns role membership without the expanded grant list.
type Role struct {
	Name        string
	Permissions []string
}

// MenuItem is one node of the server-provided navigation tree.
// Permission, when set, names the permission required to see the node.
type MenuItem struct {
	Key        string
	Label      string
	Path       string
	Icon       string
	Permission string
	Children   []MenuItem
}

// TokenPair is the credential material issued after a successful
// verification. TokenType is always "bearer" in practice.
type TokenPair struct {
	AccessToken string
	TokenType   string
}

// Profile bundles the user snapshot with the flattened permission set
// the session derives authorization decisions from.
type Profile struct {
	User        User
	Permissions []string
}

// OTPKind distinguishes the three verification flows that share the
// six-digit code entry step.
type OTPKind string

const (
	OTPRegistration  OTPKind = "registration"
	OTPPasswordless  OTPKind = "passwordless"
	OTPPasswordReset OTPKind = "password-reset"
)

// Valid reports whether k is one of the known flow kinds.
func (k OTPKind) Valid() bool {
	switch k {
	case OTPRegistration, OTPPasswordless, OTPPasswordReset:
		return true
	}
	return false
}

// Registration carries the fields of a self-service sign-up request.
type Registration struct {
	Email    string
	Password string
	FullName string
	Phone    string
}
