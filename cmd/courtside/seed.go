package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/internal/config"
	"github.com/courtsidehq/courtside/internal/groups"
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/packs"
	"github.com/courtsidehq/courtside/internal/roles"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo organization with staff, coaches, players, and teams",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

const (
	seedAdminEmail    = "admin@westsidehoops.test"
	seedAdminPassword = "courtside-demo"
)

type seedPerson struct {
	email     string
	firstName string
	lastName  string
	role      roles.Role
	profile   string
}

var seedRoster = []seedPerson{
	{"coach.rivera@westsidehoops.test", "Marco", "Rivera", roles.RoleCoach, "coach"},
	{"coach.okafor@westsidehoops.test", "Ada", "Okafor", roles.RoleCoach, "coach"},
	{"jordan.lee@westsidehoops.test", "Jordan", "Lee", roles.RolePlayer, "player"},
	{"sam.patel@westsidehoops.test", "Sam", "Patel", roles.RolePlayer, "player"},
	{"taylor.nguyen@westsidehoops.test", "Taylor", "Nguyen", roles.RolePlayer, "player"},
	{"priya.patel@westsidehoops.test", "Priya", "Patel", roles.RoleParent, "parent"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	identityStore := identity.NewStore(pool)
	grantStore := roles.NewStore(pool)
	groupStore := groups.NewStore(pool)
	packStore := packs.NewStore(pool)

	// Check if seed has already run.
	if _, err := identityStore.GetPersonByEmail(ctx, seedAdminEmail); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	org, err := identityStore.CreateOrganization(ctx, "Westside Hoops", "westside-hoops")
	if err != nil {
		return fmt.Errorf("creating organization: %w", err)
	}
	slog.Info("created organization", "name", org.Name, "id", org.ID)

	admin, err := identityStore.CreatePerson(ctx, identity.CreatePersonInput{
		OrganizationID: org.ID,
		Email:          seedAdminEmail,
		Password:       seedAdminPassword,
		FirstName:      "Dana",
		LastName:       "Whitfield",
		CreatedBy:      "seed",
	})
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	if _, err := identityStore.UpsertProfile(ctx, admin.ID, "staff", admin.FullName()); err != nil {
		return fmt.Errorf("creating admin profile: %w", err)
	}
	for _, domain := range []roles.Domain{roles.DomainOrg, roles.DomainBasketball} {
		if _, err := grantStore.Insert(ctx, roles.Grant{
			PersonID:       admin.ID,
			OrganizationID: org.ID,
			Domain:         domain,
			Role:           roles.RoleAdmin,
			CreatedBy:      "seed",
		}); err != nil {
			return fmt.Errorf("granting admin role: %w", err)
		}
	}
	slog.Info("created admin", "email", admin.Email, "id", admin.ID)

	persons := make(map[string]*identity.Person, len(seedRoster))
	for _, sp := range seedRoster {
		p, err := identityStore.CreatePerson(ctx, identity.CreatePersonInput{
			OrganizationID: org.ID,
			Email:          sp.email,
			Password:       seedAdminPassword,
			FirstName:      sp.firstName,
			LastName:       sp.lastName,
			CreatedBy:      admin.ID,
		})
		if err != nil {
			return fmt.Errorf("creating person %q: %w", sp.email, err)
		}
		if _, err := identityStore.UpsertProfile(ctx, p.ID, sp.profile, p.FullName()); err != nil {
			return fmt.Errorf("creating profile for %q: %w", sp.email, err)
		}
		persons[sp.email] = p
		slog.Info("created person", "email", p.Email, "role", sp.role)
	}

	u12, err := groupStore.CreateGroup(ctx, groups.CreateGroupInput{
		OrganizationID: org.ID,
		Name:           "U12 Eagles",
		GroupType:      "team",
		Season:         "2026-2027",
		LeadPersonID:   persons["coach.rivera@westsidehoops.test"].ID,
		Capacity:       12,
		ScheduleNote:   "Tue/Thu 17:30, Westside gym",
	})
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	u14, err := groupStore.CreateGroup(ctx, groups.CreateGroupInput{
		OrganizationID: org.ID,
		Name:           "U14 Falcons",
		GroupType:      "team",
		Season:         "2026-2027",
		LeadPersonID:   persons["coach.okafor@westsidehoops.test"].ID,
		Capacity:       14,
		ScheduleNote:   "Mon/Wed 18:00, Westside gym",
	})
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}

	// Basketball-domain grants, team scoped for the coaches.
	teamOf := map[string]*groups.Group{
		"coach.rivera@westsidehoops.test":  u12,
		"coach.okafor@westsidehoops.test":  u14,
		"jordan.lee@westsidehoops.test":    u12,
		"sam.patel@westsidehoops.test":     u12,
		"taylor.nguyen@westsidehoops.test": u14,
	}
	for _, sp := range seedRoster {
		p := persons[sp.email]
		g := roles.Grant{
			PersonID:       p.ID,
			OrganizationID: org.ID,
			Domain:         roles.DomainBasketball,
			Role:           sp.role,
			CreatedBy:      admin.ID,
		}
		if team, ok := teamOf[sp.email]; ok && sp.role == roles.RoleCoach {
			g.ScopeType = roles.ScopeTeam
			g.ScopeIDs = []string{team.ID}
		}
		if _, err := grantStore.Insert(ctx, g); err != nil {
			return fmt.Errorf("granting %s to %q: %w", sp.role, sp.email, err)
		}
		if team, ok := teamOf[sp.email]; ok {
			payer := ""
			if sp.role == roles.RolePlayer && sp.lastName == "Patel" {
				payer = persons["priya.patel@westsidehoops.test"].ID
			}
			if _, err := groupStore.UpsertMembership(ctx, p.ID, team.ID, string(sp.role), payer); err != nil {
				return fmt.Errorf("adding %q to %s: %w", sp.email, team.Name, err)
			}
		}
	}

	for pack, enabled := range map[string]bool{"basketball": true, "development_plans": true, "volleyball": false} {
		if err := packStore.SetFeature(ctx, org.ID, pack, enabled); err != nil {
			return fmt.Errorf("enabling pack %q: %w", pack, err)
		}
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Organization: %s (%s)\n", org.Name, org.ID)
	fmt.Printf("Admin:        %s / %s\n", seedAdminEmail, seedAdminPassword)
	fmt.Printf("People:       %d (coaches, players, a parent)\n", len(seedRoster))
	fmt.Printf("Teams:        %s, %s\n", u12.Name, u14.Name)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -X POST http://localhost:8080/api/v1/auth/login -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", seedAdminEmail, seedAdminPassword)
	fmt.Printf("  curl -H 'Authorization: Bearer <token>' http://localhost:8080/api/v1/auth/me\n")
	fmt.Printf("  curl -H 'Authorization: Bearer <token>' 'http://localhost:8080/api/v1/users?role=coach'\n")

	return nil
}
