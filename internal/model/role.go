package model

import "strings"

// Permission is a single capability bit. A role's permission set is the
// bitwise OR of the flags it holds.
type Permission int

const (
	PermFollow   Permission = 1
	PermComment  Permission = 2
	PermWrite    Permission = 4
	PermModerate Permission = 8
	PermAdmin    Permission = 16
)

// AllPermissions lists every flag in bit order.
var AllPermissions = []Permission{PermFollow, PermComment, PermWrite, PermModerate, PermAdmin}

func (p Permission) String() string {
	switch p {
	case PermFollow:
		return "FOLLOW"
	case PermComment:
		return "COMMENT"
	case PermWrite:
		return "WRITE"
	case PermModerate:
		return "MODERATE"
	case PermAdmin:
		return "ADMIN"
	}
	var names []string
	for _, f := range AllPermissions {
		if p&f == f {
			names = append(names, f.String())
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Role represents a row in the `roles` table.
//
// Fields:
//
//	ID          – primary key identifier.
//	Name        – unique role name (User, Moderator, Administrator).
//	Default     – assigned to new users whose email is not the admin address.
//	Permissions – bitmask of Permission flags.
type Role struct {
	ID          uint64     // roles.id
	Name        string     // roles.name
	Default     bool       // roles.is_default
	Permissions Permission // roles.permissions
}

// AddPermission sets p; it is a no-op when p is already held.
func (r *Role) AddPermission(p Permission) {
	if !r.HasPermission(p) {
		r.Permissions |= p
	}
}

// RemovePermission clears p; it is a no-op when p is not held.
func (r *Role) RemovePermission(p Permission) {
	if r.HasPermission(p) {
		r.Permissions &^= p
	}
}

func (r *Role) ResetPermissions() { r.Permissions = 0 }

func (r *Role) HasPermission(p Permission) bool {
	return r.Permissions&p == p
}

// Reconcile resets the role to exactly perms and marks it default when its
// name is defaultName.
func (r *Role) Reconcile(perms []Permission, defaultName string) {
	r.ResetPermissions()
	for _, p := range perms {
		r.AddPermission(p)
	}
	r.Default = r.Name == defaultName
}

const (
	RoleUser          = "User"
	RoleModerator     = "Moderator"
	RoleAdministrator = "Administrator"
)

// RoleSeed describes one entry of the fixed role table.
type RoleSeed struct {
	Name        string
	Permissions []Permission
}

// RoleTable is the canonical role set. The first entry is the default role.
var RoleTable = []RoleSeed{
	{Name: RoleUser, Permissions: []Permission{PermFollow, PermComment, PermWrite}},
	{Name: RoleModerator, Permissions: []Permission{PermFollow, PermComment, PermWrite, PermModerate}},
	{Name: RoleAdministrator, Permissions: []Permission{PermFollow, PermComment, PermWrite, PermModerate, PermAdmin}},
}

// DefaultRoleName is the role given to ordinary new users.
const DefaultRoleName = RoleUser
