package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a group or membership does not exist.
var ErrNotFound = errors.New("groups: not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the store can
// participate in the builder's transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides database operations for groups and memberships.
type Store struct {
	db querier
}

// NewStore creates a group store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const groupColumns = `id, organization_id, name, group_type, season,
	 lead_person_id, capacity, schedule_note, active, created_at`

func scanGroup(scan func(dest ...any) error) (*Group, error) {
	g := &Group{}
	err := scan(&g.ID, &g.OrganizationID, &g.Name, &g.GroupType,
		&g.Season, &g.LeadPersonID, &g.Capacity, &g.ScheduleNote,
		&g.Active, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGroup retrieves a group by primary key.
func (s *Store) GetGroup(ctx context.Context, id string) (*Group, error) {
	g, err := scanGroup(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+groupColumns+` FROM groups WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting group: %w", err)
	}
	return g, err
}

// ListByOrganization returns the organization's groups, active first,
// newest within each.
func (s *Store) ListByOrganization(ctx context.Context, organizationID string) ([]*Group, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+groupColumns+` FROM groups
		 WHERE organization_id = $1
		 ORDER BY active DESC, created_at DESC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var out []*Group
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CreateGroup inserts a new active group.
func (s *Store) CreateGroup(ctx context.Context, in CreateGroupInput) (*Group, error) {
	g, err := scanGroup(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO groups
			   (id, organization_id, name, group_type, season, lead_person_id, capacity, schedule_note)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+groupColumns,
			uuid.NewString(), in.OrganizationID, in.Name, in.GroupType,
			in.Season, in.LeadPersonID, in.Capacity, in.ScheduleNote,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	return g, nil
}

// ArchiveGroup marks a group inactive. Memberships are left untouched so
// historic rosters remain queryable.
func (s *Store) ArchiveGroup(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE groups SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("archiving group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const membershipColumns = `id, person_id, group_id, role, payer_person_id, active, joined_at, left_at`

func scanMembership(scan func(dest ...any) error) (*Membership, error) {
	m := &Membership{}
	err := scan(&m.ID, &m.PersonID, &m.GroupID, &m.Role,
		&m.PayerPersonID, &m.Active, &m.JoinedAt, &m.LeftAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListActiveMembers returns the group's active memberships, longest-tenured
// first.
func (s *Store) ListActiveMembers(ctx context.Context, groupID string) ([]*Membership, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+membershipColumns+` FROM person_groups
		 WHERE group_id = $1 AND active
		 ORDER BY joined_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing group members: %w", err)
	}
	defer rows.Close()

	var out []*Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListActiveGroupsForPerson returns the groups the person is an active
// member of.
func (s *Store) ListActiveGroupsForPerson(ctx context.Context, personID string) ([]*Group, error) {
	rows, err := s.db.Query(ctx,
		`SELECT g.id, g.organization_id, g.name, g.group_type, g.season,
		        g.lead_person_id, g.capacity, g.schedule_note, g.active, g.created_at
		 FROM person_groups pg JOIN groups g ON g.id = pg.group_id
		 WHERE pg.person_id = $1 AND pg.active AND g.active
		 ORDER BY g.created_at DESC`, personID)
	if err != nil {
		return nil, fmt.Errorf("listing person groups: %w", err)
	}
	defer rows.Close()

	var out []*Group
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetMembership retrieves the membership row linking a person to a group,
// active or not.
func (s *Store) GetMembership(ctx context.Context, personID, groupID string) (*Membership, error) {
	m, err := scanMembership(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+membershipColumns+` FROM person_groups
			 WHERE person_id = $1 AND group_id = $2`, personID, groupID,
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting membership: %w", err)
	}
	return m, err
}

// UpsertMembership adds the person to the group with the given role, or
// reactivates and re-roles an existing row. Re-adding someone who left is
// a rejoin, not an error. An empty payer keeps the previously recorded one.
func (s *Store) UpsertMembership(ctx context.Context, personID, groupID, role, payerPersonID string) (*Membership, error) {
	m, err := scanMembership(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO person_groups (id, person_id, group_id, role, payer_person_id)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (person_id, group_id) DO UPDATE
			 SET role = EXCLUDED.role,
			     payer_person_id = COALESCE(NULLIF(EXCLUDED.payer_person_id, ''), person_groups.payer_person_id),
			     active = true, left_at = NULL
			 RETURNING `+membershipColumns,
			uuid.NewString(), personID, groupID, role, payerPersonID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("upserting membership: %w", err)
	}
	return m, nil
}

// DeactivateMembership soft-removes the person from the group, recording
// when they left. Removing a non-member yields ErrNotFound.
func (s *Store) DeactivateMembership(ctx context.Context, personID, groupID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE person_groups
		 SET active = false, left_at = now()
		 WHERE person_id = $1 AND group_id = $2 AND active`,
		personID, groupID)
	if err != nil {
		return fmt.Errorf("deactivating membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
