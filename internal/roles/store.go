package roles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the store can
// participate in the builder's transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides database operations for role grants.
type Store struct {
	db querier
}

// NewStore creates a grant store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

const grantColumns = `id, person_id, organization_id, domain, role, permissions,
	 scope_type, scope_ids, active, started_at, ended_at, created_by`

func scanGrant(scan func(dest ...any) error) (Grant, error) {
	var g Grant
	err := scan(&g.ID, &g.PersonID, &g.OrganizationID, &g.Domain, &g.Role,
		&g.Permissions, &g.ScopeType, &g.ScopeIDs, &g.Active,
		&g.StartedAt, &g.EndedAt, &g.CreatedBy)
	return g, err
}

// ActiveGrants returns the person's grants across both domains that are
// flagged active and not past their end timestamp, most-recently-started
// first. An unknown person id yields an empty slice.
func (s *Store) ActiveGrants(ctx context.Context, personID string) ([]Grant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+grantColumns+`
		 FROM role_grants
		 WHERE person_id = $1 AND active
		   AND (ended_at IS NULL OR ended_at > now())
		 ORDER BY started_at DESC`, personID)
	if err != nil {
		return nil, fmt.Errorf("listing active grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// PersonIDsWithRole returns the ids of persons in the organization holding
// an active grant for the role in the given domain.
func (s *Store) PersonIDsWithRole(ctx context.Context, organizationID string, domain Domain, role Role) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT person_id
		 FROM role_grants
		 WHERE organization_id = $1 AND domain = $2 AND role = $3 AND active
		   AND (ended_at IS NULL OR ended_at > now())`,
		organizationID, domain, role)
	if err != nil {
		return nil, fmt.Errorf("listing persons with role: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning person id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert creates a fresh active grant.
func (s *Store) Insert(ctx context.Context, g Grant) (*Grant, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.ScopeType == "" {
		g.ScopeType = ScopeOrganization
	}
	created, err := scanGrant(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO role_grants
			   (id, person_id, organization_id, domain, role, permissions,
			    scope_type, scope_ids, active, started_at, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now(), $9)
			 RETURNING `+grantColumns,
			g.ID, g.PersonID, g.OrganizationID, g.Domain, g.Role,
			g.Permissions, g.ScopeType, g.ScopeIDs, g.CreatedBy,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting grant: %w", err)
	}
	return &created, nil
}

// DeactivateDomainGrants ends every active grant the person holds in the
// domain (active=false, ended_at=now). Used when a role set is replaced
// wholesale. Returns the number of grants ended.
func (s *Store) DeactivateDomainGrants(ctx context.Context, personID string, domain Domain) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE role_grants
		 SET active = false, ended_at = now()
		 WHERE person_id = $1 AND domain = $2 AND active`,
		personID, domain)
	if err != nil {
		return 0, fmt.Errorf("deactivating %s grants: %w", domain, err)
	}
	return tag.RowsAffected(), nil
}

// ExpireEndedGrants clears the active flag on grants whose end timestamp
// has passed. The resolver already ignores such grants; this sweep keeps
// the stored flag honest.
func (s *Store) ExpireEndedGrants(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE role_grants
		 SET active = false
		 WHERE active AND ended_at IS NOT NULL AND ended_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("expiring ended grants: %w", err)
	}
	return tag.RowsAffected(), nil
}
