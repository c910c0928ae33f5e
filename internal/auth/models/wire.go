package models

import (
	"encoding/json"
	"time"
)

// Wire types mirror the backend's JSON contracts. The backend is a
// separate service with its own history, so several fields arrive in
// more than one shape; everything is converted to the domain structs
// here and nowhere else.

// UserOut is the backend's user payload.
type UserOut struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	Phone        string      `json:"phone,omitempty"`
	IsActive     bool        `json:"is_active"`
	IsSuperuser  bool        `json:"is_superuser"`
	DepartmentID *int64      `json:"department_id,omitempty"`
	Roles        []RoleOut   `json:"roles,omitempty"`
	RolesV2      []RoleOut   `json:"roles_v2,omitempty"`
	Role         *RoleOut    `json:"role,omitempty"`
	Menus        []MenuOut   `json:"menus,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	Permissions  []LoosePerm `json:"permissions_v2,omitempty"`
}

// RoleOut is the backend's role payload. Permissions arrive either as
// plain strings or as {name, codename} objects depending on endpoint age.
type RoleOut struct {
	Name        string      `json:"name"`
	Permissions []LoosePerm `json:"permissions,omitempty"`
}

// MenuOut is one node of the backend's navigation payload.
type MenuOut struct {
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Path       string    `json:"path"`
	Icon       string    `json:"icon,omitempty"`
	Permission string    `json:"permission,omitempty"`
	Children   []MenuOut `json:"children,omitempty"`
}

// TokenOut is the backend's token issuance payload.
type TokenOut struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ProfileOut bundles what GET /users/me/profile returns.
type ProfileOut struct {
	User        UserOut     `json:"user"`
	Permissions []LoosePerm `json:"permissions"`
}

// LoosePerm accepts a permission expressed as either a bare string or
// an object carrying name and/or codename. The resolved value is the
// name when present, else the codename.
type LoosePerm struct {
	value string
}

// UnmarshalJSON implements the dual-shape decode.
func (p *LoosePerm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.value = s
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		Codename string `json:"codename"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Name != "" {
		p.value = obj.Name
		return nil
	}
	p.value = obj.Codename
	return nil
}

// String returns the resolved permission token.
func (p LoosePerm) String() string { return p.value }

// ToUser converts the wire payload to the domain User.
func (u UserOut) ToUser() User {
	user := User{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Phone:        u.Phone,
		IsActive:     u.IsActive,
		IsSuperuser:  u.IsSuperuser,
		DepartmentID: u.DepartmentID,
		CreatedAt:    u.CreatedAt,
	}
	for _, r := range u.Roles {
		user.Roles = append(user.Roles, r.ToRole())
	}
	for _, r := range u.RolesV2 {
		user.RolesV2 = append(user.RolesV2, r.ToRole())
	}
	if u.Role != nil {
		role := u.Role.ToRole()
		user.Role = &role
	}
	for _, m := range u.Menus {
		user.Menus = append(user.Menus, m.ToMenuItem())
	}
	return user
}

// ToRole converts the wire payload to the domain Role.
func (r RoleOut) ToRole() Role {
	role := Role{Name: r.Name}
	for _, p := range r.Permissions {
		if p.String() != "" {
			role.Permissions = append(role.Permissions, p.String())
		}
	}
	return role
}

// ToMenuItem converts the wire payload to the domain MenuItem.
func (m MenuOut) ToMenuItem() MenuItem {
	item := MenuItem{
		Key:        m.Key,
		Label:      m.Label,
		Path:       m.Path,
		Icon:       m.Icon,
		Permission: m.Permission,
	}
	for _, c := range m.Children {
		item.Children = append(item.Children, c.ToMenuItem())
	}
	return item
}

// ToTokenPair converts the wire payload to the domain TokenPair.
func (t TokenOut) ToTokenPair() TokenPair {
	return TokenPair{AccessToken: t.AccessToken, TokenType: t.TokenType}
}

// ToProfile converts the wire payload to the domain Profile. The
// permission set merges the flattened top-level grants with everything
// the user's roles carry, deduplicated.
func (p ProfileOut) ToProfile() Profile {
	profile := Profile{User: p.User.ToUser()}

	seen := make(map[string]struct{})
	add := func(perm string) {
		if perm == "" {
			return
		}
		if _, ok := seen[perm]; ok {
			return
		}
		seen[perm] = struct{}{}
		profile.Permissions = append(profile.Permissions, perm)
	}

	for _, perm := range p.Permissions {
		add(perm.String())
	}
	for _, perm := range p.User.Permissions {
		add(perm.String())
	}
	for _, role := range profile.User.RolesV2 {
		for _, perm := range role.Permissions {
			add(perm)
		}
	}
	for _, role := range profile.User.Roles {
		for _, perm := range role.Permissions {
			add(perm)
		}
	}
	if profile.User.Role != nil {
		for _, perm := range profile.User.Role.Permissions {
			add(perm)
		}
	}
	return profile
}
