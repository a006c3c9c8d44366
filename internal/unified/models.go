package unified

import (
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/roles"
)

// User is the composed, request-scoped view of a person: identity,
// basketball profile, resolved roles, organization metadata, pack flags
// and role contexts. It is rebuilt on every request and never persisted.
type User struct {
	Person            identity.Person       `json:"person"`
	Profile           *identity.Profile     `json:"profile,omitempty"`
	OrganizationName  string                `json:"organization_name,omitempty"`
	Roles             []roles.Role          `json:"roles"`
	BasketballRoles   []roles.Grant         `json:"basketball_roles"`
	PackFeatures      map[string]bool       `json:"pack_features"`
	CurrentContext    *roles.Context        `json:"current_context,omitempty"`
	AvailableContexts []roles.RoleInContext `json:"available_contexts"`
	Superadmin        bool                  `json:"superadmin"`
}

// IsAdmin reports whether the user carries an admin flag on either the
// person record or the basketball profile.
func (u *User) IsAdmin() bool {
	if u.Superadmin || u.Person.Admin {
		return true
	}
	return u.Profile != nil && u.Profile.Admin
}

// RoleSpec names one basketball role to grant, with optional team scope.
type RoleSpec struct {
	Role     roles.Role `json:"role"`
	ScopeIDs []string   `json:"scope_ids,omitempty"`
}

// CreateOrUpdateInput is the admin-facing payload for provisioning a
// person. BasketballRoles, when non-nil, replaces the person's basketball
// grant set wholesale; nil leaves grants untouched.
type CreateOrUpdateInput struct {
	OrganizationID  string     `json:"organization_id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	AuthUID         string     `json:"auth_uid,omitempty"`
	PersonType      string     `json:"person_type,omitempty"`
	DisplayName     string     `json:"display_name,omitempty"`
	Active          *bool      `json:"active,omitempty"`
	BasketballRoles []RoleSpec `json:"basketball_roles,omitempty"`
}
