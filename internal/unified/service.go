package unified

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtsidehq/courtside/internal/groups"
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/packs"
	"github.com/courtsidehq/courtside/internal/roles"
)

// identityReader is the slice of the identity store the builder reads from.
type identityReader interface {
	GetPersonByID(ctx context.Context, id string) (*identity.Person, error)
	GetPersonByAuthUID(ctx context.Context, authUID string) (*identity.Person, error)
	GetPersonsByIDs(ctx context.Context, ids []string) ([]*identity.Person, error)
	GetProfile(ctx context.Context, personID string) (*identity.Profile, error)
	GetOrganization(ctx context.Context, id string) (*identity.Organization, error)
}

// identityWriter is the slice used inside mutation transactions.
type identityWriter interface {
	GetPersonByEmail(ctx context.Context, email string) (*identity.Person, error)
	CreatePerson(ctx context.Context, in identity.CreatePersonInput) (*identity.Person, error)
	UpdatePerson(ctx context.Context, id string, in identity.UpdatePersonInput) (*identity.Person, error)
	UpsertProfile(ctx context.Context, personID, personType, displayName string) (*identity.Profile, error)
}

type grantReader interface {
	PersonIDsWithRole(ctx context.Context, organizationID string, domain roles.Domain, role roles.Role) ([]string, error)
}

type grantWriter interface {
	Insert(ctx context.Context, g roles.Grant) (*roles.Grant, error)
	DeactivateDomainGrants(ctx context.Context, personID string, domain roles.Domain) (int64, error)
}

type groupStore interface {
	GetGroup(ctx context.Context, id string) (*groups.Group, error)
	ListActiveMembers(ctx context.Context, groupID string) ([]*groups.Membership, error)
	UpsertMembership(ctx context.Context, personID, groupID, role, payerPersonID string) (*groups.Membership, error)
	DeactivateMembership(ctx context.Context, personID, groupID string) error
}

type roleResolver interface {
	AllPersonRoles(ctx context.Context, personID string) ([]roles.Role, error)
	BasketballRoles(ctx context.Context, personID string) ([]roles.Grant, error)
	RolesWithContext(ctx context.Context, personID string) ([]roles.RoleInContext, error)
	HasCapability(ctx context.Context, personID string, cap roles.Capability, rc *roles.Context) (bool, error)
	ValidateSwitch(ctx context.Context, personID string, role roles.Role, rc roles.Context) (bool, error)
}

// txFunc runs fn inside a single database transaction, handing it
// transaction-bound writers. Swapped out in tests.
type txFunc func(ctx context.Context, fn func(ids identityWriter, grants grantWriter) error) error

// Service assembles unified user views and performs the administrative
// mutations. All permission checks happen here, before any row is
// touched; handlers only translate errors to status codes.
type Service struct {
	identity identityReader
	grants   grantReader
	groups   groupStore
	packs    packs.Provider
	resolver roleResolver
	logger   *slog.Logger
	inTx     txFunc
}

// NewService wires the production service. The pool is used only to open
// transactions for mutations; reads go through the stores directly.
func NewService(
	pool *pgxpool.Pool,
	ids *identity.Store,
	grants *roles.Store,
	grp *groups.Store,
	resolver *roles.Resolver,
	packProvider packs.Provider,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identity: ids,
		grants:   grants,
		groups:   grp,
		packs:    packProvider,
		resolver: resolver,
		logger:   logger,
		inTx: func(ctx context.Context, fn func(identityWriter, grantWriter) error) error {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return fmt.Errorf("beginning transaction: %w", err)
			}
			defer tx.Rollback(ctx)

			if err := fn(ids.WithTx(tx), grants.WithTx(tx)); err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("committing transaction: %w", err)
			}
			return nil
		},
	}
}

// ByAuthUID builds the unified view for the authenticated subject. The
// stored context is validated against the person's available contexts and
// replaced with the first available one when absent or stale. Returns
// ErrUnauthenticated when no person matches the subject.
func (s *Service) ByAuthUID(ctx context.Context, authUID string, stored *roles.Context) (*User, error) {
	if authUID == "" {
		return nil, ErrUnauthenticated
	}
	p, err := s.identity.GetPersonByAuthUID(ctx, authUID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return s.build(ctx, p, stored)
}

// ByPersonID builds the unified view for an arbitrary person, without
// session context. Used for admin lookups and roster rendering.
func (s *Service) ByPersonID(ctx context.Context, personID string) (*User, error) {
	p, err := s.identity.GetPersonByID(ctx, personID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.build(ctx, p, nil)
}

// ByPersonIDWithContext is ByPersonID plus stored-context restoration,
// for sessions that identify the person directly rather than through an
// identity-provider subject.
func (s *Service) ByPersonIDWithContext(ctx context.Context, personID string, stored *roles.Context) (*User, error) {
	p, err := s.identity.GetPersonByID(ctx, personID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.build(ctx, p, stored)
}

// UsersByRole lists the unified views of every person holding the role in
// the organization. The organization defaults to the caller's; querying
// another organization requires superadmin, checked before any row is
// fetched. An empty domain routes the role name via roles.DomainOf, which
// resolves dual-domain names like "admin" to the org domain; pass an
// explicit domain to query the other side. Inactive persons are excluded
// unless includeInactive is set.
func (s *Service) UsersByRole(ctx context.Context, caller *User, role roles.Role, domain roles.Domain, organizationID string, includeInactive bool) ([]*User, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if organizationID == "" {
		organizationID = caller.Person.OrganizationID
	}
	if organizationID != caller.Person.OrganizationID && !caller.Superadmin {
		return nil, fmt.Errorf("%w: cross-organization query", ErrForbidden)
	}

	if domain == "" {
		var ok bool
		domain, ok = roles.DomainOf(role)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
		}
	} else if !role.ValidFor(domain) {
		return nil, fmt.Errorf("%w: role %q is not valid in domain %q", ErrInvalidInput, role, domain)
	}

	ids, err := s.grants.PersonIDsWithRole(ctx, organizationID, domain, role)
	if err != nil {
		return nil, err
	}
	people, err := s.identity.GetPersonsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(people))
	for _, p := range people {
		if !p.Active && !includeInactive {
			continue
		}
		u, err := s.build(ctx, p, nil)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// UsersInTeam lists the unified views of the team's active members. The
// caller needs the view-team-players capability in a context covering the
// team, or an admin/superadmin flag.
func (s *Service) UsersInTeam(ctx context.Context, caller *User, teamID string) ([]*User, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		ok, err := s.resolver.HasCapability(ctx, caller.Person.ID,
			roles.CapViewTeamPlayers, &roles.Context{GroupID: teamID})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: view team players", ErrForbidden)
		}
	}

	if _, err := s.groups.GetGroup(ctx, teamID); err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	members, err := s.groups.ListActiveMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(members))
	for _, m := range members {
		p, err := s.identity.GetPersonByID(ctx, m.PersonID)
		if errors.Is(err, identity.ErrNotFound) {
			s.logger.Warn("team member without person row",
				"person_id", m.PersonID, "group_id", teamID)
			continue
		}
		if err != nil {
			return nil, err
		}
		u, err := s.build(ctx, p, nil)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// CreateOrUpdateUser provisions a person: upserts the person row by email,
// refreshes the basketball profile, and, when a role list is supplied,
// replaces the person's basketball grants wholesale. The whole sequence
// runs in one transaction. Requires admin or superadmin; a target
// organization other than the caller's requires superadmin.
func (s *Service) CreateOrUpdateUser(ctx context.Context, caller *User, in CreateOrUpdateInput) (string, error) {
	if caller == nil {
		return "", ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return "", fmt.Errorf("%w: manage users", ErrForbidden)
	}
	if in.OrganizationID == "" {
		in.OrganizationID = caller.Person.OrganizationID
	}
	if in.OrganizationID != caller.Person.OrganizationID && !caller.Superadmin {
		return "", fmt.Errorf("%w: cross-organization write", ErrForbidden)
	}
	if in.Email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	for _, spec := range in.BasketballRoles {
		if !spec.Role.ValidFor(roles.DomainBasketball) {
			return "", fmt.Errorf("%w: role %q is not grantable in the basketball domain",
				ErrInvalidInput, spec.Role)
		}
	}

	var personID string
	err := s.inTx(ctx, func(ids identityWriter, grants grantWriter) error {
		p, err := ids.GetPersonByEmail(ctx, in.Email)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			p, err = ids.CreatePerson(ctx, identity.CreatePersonInput{
				OrganizationID: in.OrganizationID,
				AuthUID:        in.AuthUID,
				Email:          in.Email,
				FirstName:      in.FirstName,
				LastName:       in.LastName,
				CreatedBy:      caller.Person.ID,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if p.OrganizationID != in.OrganizationID {
				return fmt.Errorf("%w: person belongs to another organization", ErrForbidden)
			}
			update := identity.UpdatePersonInput{UpdatedBy: caller.Person.ID}
			if in.FirstName != "" {
				update.FirstName = &in.FirstName
			}
			if in.LastName != "" {
				update.LastName = &in.LastName
			}
			if in.Active != nil {
				update.Active = in.Active
			}
			if p, err = ids.UpdatePerson(ctx, p.ID, update); err != nil {
				return err
			}
		}
		personID = p.ID

		if in.PersonType != "" {
			if _, err := ids.UpsertProfile(ctx, p.ID, in.PersonType, in.DisplayName); err != nil {
				return err
			}
		}

		if in.BasketballRoles == nil {
			return nil
		}
		if _, err := grants.DeactivateDomainGrants(ctx, p.ID, roles.DomainBasketball); err != nil {
			return err
		}
		for _, spec := range in.BasketballRoles {
			scopeType := roles.ScopeOrganization
			if len(spec.ScopeIDs) > 0 {
				scopeType = roles.ScopeTeam
			}
			_, err := grants.Insert(ctx, roles.Grant{
				PersonID:       p.ID,
				OrganizationID: in.OrganizationID,
				Domain:         roles.DomainBasketball,
				Role:           spec.Role,
				ScopeType:      scopeType,
				ScopeIDs:       spec.ScopeIDs,
				CreatedBy:      caller.Person.ID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return personID, nil
}

// AddUserToTeam upserts a team membership, reactivating a previously
// removed one. Requires the manage-teams capability or admin/superadmin,
// and the team must belong to the caller's organization unless superadmin.
func (s *Service) AddUserToTeam(ctx context.Context, caller *User, personID, teamID, role, payerPersonID string) error {
	if err := s.requireTeamManager(ctx, caller, teamID); err != nil {
		return err
	}
	if _, err := s.identity.GetPersonByID(ctx, personID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if role == "" {
		role = "player"
	}
	_, err := s.groups.UpsertMembership(ctx, personID, teamID, role, payerPersonID)
	return err
}

// RemoveUserFromTeam soft-removes a membership, preserving history.
func (s *Service) RemoveUserFromTeam(ctx context.Context, caller *User, personID, teamID string) error {
	if err := s.requireTeamManager(ctx, caller, teamID); err != nil {
		return err
	}
	err := s.groups.DeactivateMembership(ctx, personID, teamID)
	if errors.Is(err, groups.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// SwitchContext validates that the caller may act as the given role in
// the given context. On success it returns the normalized context for the
// HTTP layer to persist; on failure nothing is persisted anywhere.
func (s *Service) SwitchContext(ctx context.Context, caller *User, role roles.Role, rc roles.Context) (*roles.Context, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if rc.OrganizationID == "" {
		rc.OrganizationID = caller.Person.OrganizationID
	}
	ok, err := s.resolver.ValidateSwitch(ctx, caller.Person.ID, role, rc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: role %q not held in requested context", ErrForbidden, role)
	}
	rc.PersonID = caller.Person.ID
	rc.Role = role
	return &rc, nil
}

func (s *Service) requireTeamManager(ctx context.Context, caller *User, teamID string) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	g, err := s.groups.GetGroup(ctx, teamID)
	if errors.Is(err, groups.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if g.OrganizationID != caller.Person.OrganizationID && !caller.Superadmin {
		return fmt.Errorf("%w: team belongs to another organization", ErrForbidden)
	}
	if caller.IsAdmin() {
		return nil
	}
	ok, err := s.resolver.HasCapability(ctx, caller.Person.ID,
		roles.CapManageTeams, &roles.Context{GroupID: teamID})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: manage teams", ErrForbidden)
	}
	return nil
}

// build composes the unified view from an already-loaded person row.
// Missing profile and organization rows are tolerated; a pack provider
// failure degrades to an empty flag map rather than failing the view.
func (s *Service) build(ctx context.Context, p *identity.Person, stored *roles.Context) (*User, error) {
	u := &User{
		Person:       *p,
		PackFeatures: map[string]bool{},
		Superadmin:   p.Superadmin,
	}

	profile, err := s.identity.GetProfile(ctx, p.ID)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		// Pure org-side staff have no basketball profile.
	case err != nil:
		return nil, err
	default:
		u.Profile = profile
		u.Superadmin = u.Superadmin || profile.Superadmin
	}

	if p.OrganizationID != "" {
		org, err := s.identity.GetOrganization(ctx, p.OrganizationID)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			s.logger.Warn("person references missing organization",
				"person_id", p.ID, "organization_id", p.OrganizationID)
		case err != nil:
			return nil, err
		default:
			u.OrganizationName = org.Name
		}
	}

	if u.Roles, err = s.resolver.AllPersonRoles(ctx, p.ID); err != nil {
		return nil, err
	}
	if u.BasketballRoles, err = s.resolver.BasketballRoles(ctx, p.ID); err != nil {
		return nil, err
	}
	if u.AvailableContexts, err = s.resolver.RolesWithContext(ctx, p.ID); err != nil {
		return nil, err
	}
	u.CurrentContext = pickContext(stored, u.AvailableContexts)

	if p.OrganizationID != "" {
		features, err := s.packs.Features(ctx, p.OrganizationID)
		if err != nil {
			s.logger.Warn("pack feature lookup failed",
				"organization_id", p.OrganizationID, "error", err)
		} else {
			u.PackFeatures = features
		}
	}

	return u, nil
}

// pickContext validates a stored context against the available ones and
// falls back to the first available context. A stale or absent stored
// context is normal, never an error.
func pickContext(stored *roles.Context, available []roles.RoleInContext) *roles.Context {
	if stored != nil {
		for _, ric := range available {
			c := ric.Context
			if c.Role == stored.Role && c.OrganizationID == stored.OrganizationID && c.GroupID == stored.GroupID {
				return &c
			}
		}
	}
	if len(available) > 0 {
		c := available[0].Context
		return &c
	}
	return nil
}
