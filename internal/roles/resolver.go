package roles

import (
	"context"
	"time"
)

// GrantSource supplies the active grants for a person. Unknown person ids
// yield an empty slice, not an error.
type GrantSource interface {
	ActiveGrants(ctx context.Context, personID string) ([]Grant, error)
}

// FlagSource supplies the superadmin short-circuit signal: true when
// either the person record or their basketball profile carries the flag.
type FlagSource interface {
	IsSuperadmin(ctx context.Context, personID string) (bool, error)
}

// Resolver merges grants from both domains into effective roles and
// answers capability checks. It is the single permission surface consulted
// by route guards and the unified-user builder.
type Resolver struct {
	grants GrantSource
	flags  FlagSource
	now    func() time.Time
}

func NewResolver(grants GrantSource, flags FlagSource) *Resolver {
	return &Resolver{
		grants: grants,
		flags:  flags,
		now:    time.Now,
	}
}

// AllPersonRoles returns the distinct org-domain role names the person
// holds, most-recently-started first. Empty for unknown persons.
func (r *Resolver) AllPersonRoles(ctx context.Context, personID string) ([]Role, error) {
	grants, err := r.effectiveGrants(ctx, personID)
	if err != nil {
		return nil, err
	}

	seen := map[Role]bool{}
	var out []Role
	for _, g := range grants {
		if g.Domain != DomainOrg || seen[g.Role] {
			continue
		}
		seen[g.Role] = true
		out = append(out, g.Role)
	}
	return out, nil
}

// BasketballRoles returns the full active basketball-domain grant records
// for the person, most-recently-started first.
func (r *Resolver) BasketballRoles(ctx context.Context, personID string) ([]Grant, error) {
	grants, err := r.effectiveGrants(ctx, personID)
	if err != nil {
		return nil, err
	}

	var out []Grant
	for _, g := range grants {
		if g.Domain == DomainBasketball {
			out = append(out, g)
		}
	}
	return out, nil
}

// HasRole reports whether the person holds an active basketball-domain
// grant for the role that covers the given context. Superadmins pass
// every check.
func (r *Resolver) HasRole(ctx context.Context, personID string, role Role, rc *Context) (bool, error) {
	super, err := r.flags.IsSuperadmin(ctx, personID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	grants, err := r.effectiveGrants(ctx, personID)
	if err != nil {
		return false, err
	}

	groupID := ""
	if rc != nil {
		groupID = rc.GroupID
	}
	for _, g := range grants {
		if g.Domain == DomainBasketball && g.Role == role && g.CoversGroup(groupID) {
			return true, nil
		}
	}
	return false, nil
}

// HasCapability reports whether the person holds, in the given context,
// any role that implies the capability. Grants from both domains count.
func (r *Resolver) HasCapability(ctx context.Context, personID string, cap Capability, rc *Context) (bool, error) {
	super, err := r.flags.IsSuperadmin(ctx, personID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	implying := cap.ImplyingRoles()
	if len(implying) == 0 {
		return false, nil
	}

	grants, err := r.effectiveGrants(ctx, personID)
	if err != nil {
		return false, err
	}

	groupID := ""
	if rc != nil {
		groupID = rc.GroupID
	}
	for _, g := range grants {
		if !g.CoversGroup(groupID) {
			continue
		}
		for _, role := range implying {
			if g.Role == role {
				return true, nil
			}
		}
	}
	return false, nil
}

// RolesWithContext enumerates every active grant as candidate contexts the
// person could switch into. Team-scoped grants expand to one context per
// team id; unscoped grants yield a single organization-wide context.
func (r *Resolver) RolesWithContext(ctx context.Context, personID string) ([]RoleInContext, error) {
	grants, err := r.effectiveGrants(ctx, personID)
	if err != nil {
		return nil, err
	}

	var out []RoleInContext
	for _, g := range grants {
		if g.ScopeType == ScopeTeam && len(g.ScopeIDs) > 0 {
			for _, groupID := range g.ScopeIDs {
				out = append(out, RoleInContext{
					Role: g.Role,
					Context: Context{
						PersonID:       personID,
						OrganizationID: g.OrganizationID,
						GroupID:        groupID,
						ContextType:    string(g.ScopeType),
						Role:           g.Role,
					},
				})
			}
			continue
		}
		out = append(out, RoleInContext{
			Role: g.Role,
			Context: Context{
				PersonID:       personID,
				OrganizationID: g.OrganizationID,
				ContextType:    string(g.ScopeType),
				Role:           g.Role,
			},
		})
	}
	return out, nil
}

// ValidateSwitch reports whether the person may switch into acting as the
// given role within the given context. It has no side effects; the HTTP
// layer persists the new context only when this returns true.
func (r *Resolver) ValidateSwitch(ctx context.Context, personID string, role Role, rc Context) (bool, error) {
	super, err := r.flags.IsSuperadmin(ctx, personID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	grants, err := r.effectiveGrants(ctx, personID)
	if err != nil {
		return false, err
	}

	for _, g := range grants {
		if g.Role != role {
			continue
		}
		if rc.OrganizationID != "" && g.OrganizationID != rc.OrganizationID {
			continue
		}
		if g.CoversGroup(rc.GroupID) {
			return true, nil
		}
	}
	return false, nil
}

// effectiveGrants fetches the person's grants and re-checks expiry: the
// store already filters on the active flag, but a stale flag must not
// resurrect an ended grant. Exact duplicates are dropped.
func (r *Resolver) effectiveGrants(ctx context.Context, personID string) ([]Grant, error) {
	grants, err := r.grants.ActiveGrants(ctx, personID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	type key struct {
		domain Domain
		role   Role
		scope  ScopeType
		group  string
	}
	seen := map[key]bool{}
	out := make([]Grant, 0, len(grants))
	for _, g := range grants {
		if !g.EffectiveAt(now) {
			continue
		}
		k := key{g.Domain, g.Role, g.ScopeType, joinIDs(g.ScopeIDs)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, g)
	}
	return out, nil
}

func joinIDs(ids []string) string {
	switch len(ids) {
	case 0:
		return ""
	case 1:
		return ids[0]
	}
	s := ids[0]
	for _, id := range ids[1:] {
		s += "," + id
	}
	return s
}
