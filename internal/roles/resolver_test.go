package roles

import (
	"context"
	"testing"
	"time"
)

type fakeGrants struct {
	grants map[string][]Grant
	err    error
}

func (f *fakeGrants) ActiveGrants(_ context.Context, personID string) ([]Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.grants[personID], nil
}

type fakeFlags struct {
	super map[string]bool
}

func (f *fakeFlags) IsSuperadmin(_ context.Context, personID string) (bool, error) {
	return f.super[personID], nil
}

func newTestResolver(grants map[string][]Grant, super map[string]bool) *Resolver {
	if super == nil {
		super = map[string]bool{}
	}
	return NewResolver(&fakeGrants{grants: grants}, &fakeFlags{super: super})
}

func activeGrant(personID string, domain Domain, role Role, started time.Time) Grant {
	return Grant{
		ID:             personID + "-" + string(domain) + "-" + string(role),
		PersonID:       personID,
		OrganizationID: "org-1",
		Domain:         domain,
		Role:           role,
		ScopeType:      ScopeOrganization,
		Active:         true,
		StartedAt:      started,
	}
}

func TestSuperadminShortCircuitsEveryCheck(t *testing.T) {
	r := newTestResolver(nil, map[string]bool{"p1": true})
	ctx := context.Background()

	caps := []Capability{
		CapViewTeamPlayers, CapManageTeams, CapManageUsers,
		CapRecordObservations, CapViewDevelopmentPlans,
		CapManageDevelopmentPlans, CapManageOrganization,
	}
	for _, c := range caps {
		ok, err := r.HasCapability(ctx, "p1", c, &Context{GroupID: "team-99"})
		if err != nil {
			t.Fatalf("HasCapability(%s): %v", c, err)
		}
		if !ok {
			t.Errorf("superadmin should hold capability %s with no grants", c)
		}
	}

	for _, role := range []Role{RoleCoach, RolePlayer, RoleParent, RoleAdmin} {
		ok, err := r.HasRole(ctx, "p1", role, &Context{GroupID: "team-42"})
		if err != nil {
			t.Fatalf("HasRole(%s): %v", role, err)
		}
		if !ok {
			t.Errorf("superadmin should pass HasRole(%s)", role)
		}
	}

	ok, err := r.ValidateSwitch(ctx, "p1", RoleCoach, Context{OrganizationID: "org-9", GroupID: "team-1"})
	if err != nil {
		t.Fatalf("ValidateSwitch: %v", err)
	}
	if !ok {
		t.Error("superadmin should be allowed to switch into any context")
	}
}

func TestSuperadminRoleGrantImpliesEveryCapability(t *testing.T) {
	grants := map[string][]Grant{
		"p1": {activeGrant("p1", DomainBasketball, RoleSuperadmin, time.Now().Add(-time.Hour))},
	}
	// No superadmin flag on the person; the grant alone must carry.
	r := newTestResolver(grants, nil)
	ctx := context.Background()

	caps := []Capability{
		CapViewTeamPlayers, CapManageTeams, CapManageUsers,
		CapRecordObservations, CapViewDevelopmentPlans,
		CapManageDevelopmentPlans, CapManageOrganization,
	}
	for _, c := range caps {
		ok, err := r.HasCapability(ctx, "p1", c, &Context{GroupID: "team-5"})
		if err != nil {
			t.Fatalf("HasCapability(%s): %v", c, err)
		}
		if !ok {
			t.Errorf("superadmin role grant should imply capability %s", c)
		}
	}
}

func TestNoGrantsYieldsEmptyAndFalse(t *testing.T) {
	r := newTestResolver(nil, nil)
	ctx := context.Background()

	rolesOut, err := r.AllPersonRoles(ctx, "unknown")
	if err != nil {
		t.Fatalf("AllPersonRoles: %v", err)
	}
	if len(rolesOut) != 0 {
		t.Errorf("expected no roles, got %v", rolesOut)
	}

	grants, err := r.BasketballRoles(ctx, "unknown")
	if err != nil {
		t.Fatalf("BasketballRoles: %v", err)
	}
	if len(grants) != 0 {
		t.Errorf("expected no grants, got %v", grants)
	}

	ok, err := r.HasCapability(ctx, "unknown", CapViewTeamPlayers, nil)
	if err != nil {
		t.Fatalf("HasCapability: %v", err)
	}
	if ok {
		t.Error("person with no grants should fail capability checks")
	}

	ok, err = r.HasRole(ctx, "unknown", RoleCoach, nil)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if ok {
		t.Error("person with no grants should fail role checks")
	}
}

func TestHasRoleTeamScope(t *testing.T) {
	ended := time.Now().Add(24 * time.Hour)
	grants := map[string][]Grant{
		"p1": {
			{
				ID:             "g1",
				PersonID:       "p1",
				OrganizationID: "org-1",
				Domain:         DomainBasketball,
				Role:           RoleCoach,
				ScopeType:      ScopeTeam,
				ScopeIDs:       []string{"team-42"},
				Active:         true,
				StartedAt:      time.Now().Add(-time.Hour),
				EndedAt:        &ended,
			},
		},
	}
	r := newTestResolver(grants, nil)
	ctx := context.Background()

	ok, err := r.HasRole(ctx, "p1", RoleCoach, &Context{GroupID: "team-42"})
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !ok {
		t.Error("coach of team-42 should pass the team-42 check")
	}

	ok, err = r.HasRole(ctx, "p1", RoleCoach, &Context{GroupID: "team-99"})
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if ok {
		t.Error("coach of team-42 must not pass a team-99 check")
	}

	// A nil context is an unscoped check; the grant covers it.
	ok, err = r.HasRole(ctx, "p1", RoleCoach, nil)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !ok {
		t.Error("unscoped check should pass for any held role")
	}
}

func TestOrgScopedGrantSatisfiesAnyTeamCheck(t *testing.T) {
	grants := map[string][]Grant{
		"p1": {activeGrant("p1", DomainBasketball, RoleCoach, time.Now().Add(-time.Hour))},
	}
	r := newTestResolver(grants, nil)

	ok, err := r.HasRole(context.Background(), "p1", RoleCoach, &Context{GroupID: "team-7"})
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !ok {
		t.Error("organization-scoped grant should satisfy any team-level check")
	}
}

func TestExpiredGrantExcludedDespiteActiveFlag(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	grants := map[string][]Grant{
		"p1": {
			{
				ID:             "g1",
				PersonID:       "p1",
				OrganizationID: "org-1",
				Domain:         DomainBasketball,
				Role:           RoleCoach,
				ScopeType:      ScopeOrganization,
				Active:         true, // stale flag
				StartedAt:      time.Now().Add(-time.Hour),
				EndedAt:        &past,
			},
		},
	}
	r := newTestResolver(grants, nil)

	ok, err := r.HasRole(context.Background(), "p1", RoleCoach, nil)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if ok {
		t.Error("grant with past ended_at must not count even when active is true")
	}
}

func TestHasCapabilityImplicationTable(t *testing.T) {
	grants := map[string][]Grant{
		"coach":  {activeGrant("coach", DomainBasketball, RoleCoach, time.Now().Add(-time.Hour))},
		"parent": {activeGrant("parent", DomainBasketball, RoleParent, time.Now().Add(-time.Hour))},
		"admin":  {activeGrant("admin", DomainOrg, RoleAdmin, time.Now().Add(-time.Hour))},
	}
	r := newTestResolver(grants, nil)
	ctx := context.Background()

	tests := []struct {
		person string
		cap    Capability
		want   bool
	}{
		{"coach", CapViewTeamPlayers, true},
		{"coach", CapRecordObservations, true},
		{"coach", CapManageUsers, false},
		{"parent", CapViewDevelopmentPlans, true},
		{"parent", CapViewTeamPlayers, false},
		{"admin", CapManageUsers, true},
		{"admin", CapManageTeams, true},
		{"admin", CapViewTeamPlayers, true},
	}
	for _, tt := range tests {
		got, err := r.HasCapability(ctx, tt.person, tt.cap, nil)
		if err != nil {
			t.Fatalf("HasCapability(%s, %s): %v", tt.person, tt.cap, err)
		}
		if got != tt.want {
			t.Errorf("HasCapability(%s, %s) = %v, want %v", tt.person, tt.cap, got, tt.want)
		}
	}
}

func TestAllPersonRolesDistinctAndOrdered(t *testing.T) {
	now := time.Now()
	grants := map[string][]Grant{
		"p1": {
			activeGrant("p1", DomainOrg, RoleAdmin, now.Add(-time.Hour)),
			activeGrant("p1", DomainOrg, RoleStaff, now.Add(-2*time.Hour)),
			activeGrant("p1", DomainBasketball, RoleCoach, now.Add(-30*time.Minute)),
		},
	}
	r := newTestResolver(grants, nil)

	out, err := r.AllPersonRoles(context.Background(), "p1")
	if err != nil {
		t.Fatalf("AllPersonRoles: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 org roles, got %v", out)
	}
	if out[0] != RoleAdmin || out[1] != RoleStaff {
		t.Errorf("expected [admin staff] in grant order, got %v", out)
	}
}

func TestDuplicateGrantsDeduplicated(t *testing.T) {
	now := time.Now()
	g := activeGrant("p1", DomainBasketball, RoleCoach, now.Add(-time.Hour))
	dup := g
	dup.ID = "g-dup"
	grants := map[string][]Grant{"p1": {g, dup}}
	r := newTestResolver(grants, nil)

	out, err := r.BasketballRoles(context.Background(), "p1")
	if err != nil {
		t.Fatalf("BasketballRoles: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected duplicate grants collapsed to 1, got %d", len(out))
	}
}

func TestRolesWithContextExpandsTeams(t *testing.T) {
	grants := map[string][]Grant{
		"p1": {
			{
				ID:             "g1",
				PersonID:       "p1",
				OrganizationID: "org-1",
				Domain:         DomainBasketball,
				Role:           RoleCoach,
				ScopeType:      ScopeTeam,
				ScopeIDs:       []string{"team-1", "team-2"},
				Active:         true,
				StartedAt:      time.Now().Add(-time.Hour),
			},
			activeGrant("p1", DomainOrg, RoleAdmin, time.Now().Add(-2*time.Hour)),
		},
	}
	r := newTestResolver(grants, nil)

	out, err := r.RolesWithContext(context.Background(), "p1")
	if err != nil {
		t.Fatalf("RolesWithContext: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 contexts (2 teams + 1 org), got %d", len(out))
	}
	if out[0].Context.GroupID != "team-1" || out[1].Context.GroupID != "team-2" {
		t.Errorf("expected team contexts first, got %+v", out)
	}
	if out[2].Role != RoleAdmin || out[2].Context.GroupID != "" {
		t.Errorf("expected org-wide admin context last, got %+v", out[2])
	}
	for _, ric := range out {
		if ric.Context.PersonID != "p1" || ric.Context.OrganizationID != "org-1" {
			t.Errorf("context missing person/org: %+v", ric.Context)
		}
	}
}

func TestValidateSwitchRejectsUnheldRole(t *testing.T) {
	grants := map[string][]Grant{
		"p1": {
			{
				ID:             "g1",
				PersonID:       "p1",
				OrganizationID: "org-1",
				Domain:         DomainBasketball,
				Role:           RoleCoach,
				ScopeType:      ScopeTeam,
				ScopeIDs:       []string{"team-42"},
				Active:         true,
				StartedAt:      time.Now().Add(-time.Hour),
			},
		},
	}
	r := newTestResolver(grants, nil)
	ctx := context.Background()

	ok, err := r.ValidateSwitch(ctx, "p1", RoleAdmin, Context{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("ValidateSwitch: %v", err)
	}
	if ok {
		t.Error("switch into unheld role must be rejected")
	}

	ok, err = r.ValidateSwitch(ctx, "p1", RoleCoach, Context{OrganizationID: "org-1", GroupID: "team-99"})
	if err != nil {
		t.Fatalf("ValidateSwitch: %v", err)
	}
	if ok {
		t.Error("switch into uncovered team must be rejected")
	}

	ok, err = r.ValidateSwitch(ctx, "p1", RoleCoach, Context{OrganizationID: "org-1", GroupID: "team-42"})
	if err != nil {
		t.Fatalf("ValidateSwitch: %v", err)
	}
	if !ok {
		t.Error("switch into held role and covered team should be allowed")
	}

	ok, err = r.ValidateSwitch(ctx, "p1", RoleCoach, Context{OrganizationID: "org-2", GroupID: "team-42"})
	if err != nil {
		t.Fatalf("ValidateSwitch: %v", err)
	}
	if ok {
		t.Error("switch into a different organization must be rejected")
	}
}

func TestRoleDomainRouting(t *testing.T) {
	tests := []struct {
		role   Role
		domain Domain
		ok     bool
	}{
		{RoleAdmin, DomainOrg, true},
		{RoleStaff, DomainOrg, true},
		{RoleCoach, DomainBasketball, true},
		{RolePlayer, DomainBasketball, true},
		{Role("unknown"), "", false},
	}
	for _, tt := range tests {
		d, ok := DomainOf(tt.role)
		if ok != tt.ok || (ok && d != tt.domain) {
			t.Errorf("DomainOf(%s) = (%s, %v), want (%s, %v)", tt.role, d, ok, tt.domain, tt.ok)
		}
	}
}
