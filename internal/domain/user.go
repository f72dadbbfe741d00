package domain

import (
	"strings"
	"time"
)

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleEditor UserRole = "editor"
	UserRoleViewer UserRole = "viewer"
)

// ParseRole validates a role name.
func ParseRole(s string) (UserRole, bool) {
	switch r := UserRole(strings.ToLower(strings.TrimSpace(s))); r {
	case UserRoleAdmin, UserRoleEditor, UserRoleViewer:
		return r, true
	}
	return "", false
}

// Label is the human form of the role.
func (r UserRole) Label() string {
	switch r {
	case UserRoleAdmin:
		return "Admin"
	case UserRoleEditor:
		return "Editor"
	default:
		return "Viewer"
	}
}

// CanEdit reports whether the role may add, edit and import contributions.
func (r UserRole) CanEdit() bool { return r == UserRoleAdmin || r == UserRoleEditor }

// CanDelete reports whether the role may delete contributions.
func (r UserRole) CanDelete() bool { return r == UserRoleAdmin }

// CanManageUsers reports whether the role may administer authorized users.
func (r UserRole) CanManageUsers() bool { return r == UserRoleAdmin }

// CanViewAudit reports whether the role may read the audit log.
func (r UserRole) CanViewAudit() bool { return r == UserRoleAdmin }

// EmailKey derives the storage key of an email: lowercased with dots
// replaced by commas.
func EmailKey(email string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(email)), ".", ",")
}

// AuthorizedUser is an entry of the access list.
type AuthorizedUser struct {
	Key       string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// Identity is what the auth provider tells us about the signed-in user.
type Identity struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// Actor is a signed-in identity with its resolved role.
type Actor struct {
	Identity
	Role UserRole `json:"role"`
}

// Key returns the email key of the actor.
func (a Actor) Key() string { return EmailKey(a.Email) }

// StampName returns the actor name recorded on documents.
func (a Actor) StampName() string {
	if a.Email == "" {
		return "unknown"
	}
	return a.Email
}

// DisplayLabel prefers the display name and falls back to the email.
func (a Actor) DisplayLabel() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.StampName()
}
