package roles

import (
	"time"
)

// Domain separates organization-wide role grants from basketball-domain
// grants. Both live in the same role_grants table, tagged by this value.
type Domain string

const (
	DomainOrg        Domain = "org"
	DomainBasketball Domain = "basketball"
)

// Role is a closed enumeration of grantable role names.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleMember     Role = "member"
	RoleCoach      Role = "coach"
	RolePlayer     Role = "player"
	RoleParent     Role = "parent"
)

var orgRoles = map[Role]bool{
	RoleSuperadmin: true,
	RoleAdmin:      true,
	RoleStaff:      true,
	RoleMember:     true,
}

var basketballRoles = map[Role]bool{
	RoleSuperadmin: true,
	RoleAdmin:      true,
	RoleCoach:      true,
	RolePlayer:     true,
	RoleParent:     true,
}

// ValidFor reports whether the role may be granted in the given domain.
func (r Role) ValidFor(d Domain) bool {
	switch d {
	case DomainOrg:
		return orgRoles[r]
	case DomainBasketball:
		return basketballRoles[r]
	}
	return false
}

// DomainOf returns the domain a bare role name is routed to when a caller
// supplies only the name (e.g. a users-by-role query). Roles valid in both
// domains resolve to the org domain.
func DomainOf(r Role) (Domain, bool) {
	if orgRoles[r] {
		return DomainOrg, true
	}
	if basketballRoles[r] {
		return DomainBasketball, true
	}
	return "", false
}

// ScopeType describes what a grant's scope id list refers to.
type ScopeType string

const (
	ScopeOrganization ScopeType = "organization"
	ScopeTeam         ScopeType = "team"
	ScopeSystem       ScopeType = "system"
)

// Grant is a time-boxed assignment of a role to a person.
type Grant struct {
	ID             string     `json:"id"`
	PersonID       string     `json:"person_id"`
	OrganizationID string     `json:"organization_id"`
	Domain         Domain     `json:"domain"`
	Role           Role       `json:"role"`
	Permissions    []string   `json:"permissions,omitempty"`
	ScopeType      ScopeType  `json:"scope_type"`
	ScopeIDs       []string   `json:"scope_ids,omitempty"`
	Active         bool       `json:"active"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	CreatedBy      string     `json:"created_by,omitempty"`
}

// EffectiveAt reports whether the grant confers its role at the given time.
// The active flag alone is not trusted: a past ended_at always disqualifies.
func (g *Grant) EffectiveAt(now time.Time) bool {
	if !g.Active {
		return false
	}
	if g.StartedAt.After(now) {
		return false
	}
	if g.EndedAt != nil && !g.EndedAt.After(now) {
		return false
	}
	return true
}

// CoversGroup reports whether the grant satisfies a check scoped to the
// given group. Organization- and system-scoped grants satisfy any
// team-level check; team-scoped grants must list the group explicitly.
func (g *Grant) CoversGroup(groupID string) bool {
	if groupID == "" || g.ScopeType != ScopeTeam {
		return true
	}
	for _, id := range g.ScopeIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// Context is the "acting as" selection a person operates under. It is
// passed explicitly through every permission check; only the HTTP layer
// persists it (in a cookie) or restores it.
type Context struct {
	PersonID       string `json:"person_id"`
	OrganizationID string `json:"organization_id"`
	GroupID        string `json:"group_id,omitempty"`
	ContextType    string `json:"context_type,omitempty"`
	Role           Role   `json:"role"`
}

// RoleInContext pairs a held role with one concrete context the person
// could switch into. Team-scoped grants expand to one entry per team.
type RoleInContext struct {
	Role    Role    `json:"role"`
	Context Context `json:"context"`
}
