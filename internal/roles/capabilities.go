package roles

// Capability is a fine-grained permission implied by one or more roles.
type Capability string

const (
	CapViewTeamPlayers        Capability = "view_team_players"
	CapManageTeams            Capability = "manage_teams"
	CapManageUsers            Capability = "manage_users"
	CapRecordObservations     Capability = "record_observations"
	CapViewDevelopmentPlans   Capability = "view_development_plans"
	CapManageDevelopmentPlans Capability = "manage_development_plans"
	CapManageOrganization     Capability = "manage_organization"
)

// capabilityRoles is the static implication table: holding any listed role
// (in a covering scope) grants the capability. The superadmin flag on the
// person or profile already short-circuits in the resolver, but superadmin
// is also a grantable role, so it must imply every capability here too.
var capabilityRoles = map[Capability][]Role{
	CapViewTeamPlayers:        {RoleCoach, RoleAdmin, RoleSuperadmin},
	CapManageTeams:            {RoleAdmin, RoleSuperadmin},
	CapManageUsers:            {RoleAdmin, RoleSuperadmin},
	CapRecordObservations:     {RoleCoach, RoleAdmin, RoleSuperadmin},
	CapViewDevelopmentPlans:   {RoleCoach, RoleParent, RoleAdmin, RoleSuperadmin},
	CapManageDevelopmentPlans: {RoleCoach, RoleAdmin, RoleSuperadmin},
	CapManageOrganization:     {RoleAdmin, RoleSuperadmin},
}

// Valid reports whether the capability is known.
func (c Capability) Valid() bool {
	_, ok := capabilityRoles[c]
	return ok
}

// ImplyingRoles returns the roles that grant the capability.
func (c Capability) ImplyingRoles() []Role {
	return capabilityRoles[c]
}
