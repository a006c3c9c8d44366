// Package packs resolves which feature packs an organization has enabled.
// Pack flags gate optional product areas (development plans, advanced
// stats) and are read on almost every request, so reads go through a
// short-TTL cache in front of the database.
package packs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provider answers which packs are enabled for an organization. The map
// keys are pack slugs; absent keys mean disabled.
type Provider interface {
	Features(ctx context.Context, organizationID string) (map[string]bool, error)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides database operations for pack features.
type Store struct {
	db querier
}

// NewStore creates a pack store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// Features returns the organization's pack flags. Organizations with no
// rows get an empty map, not an error.
func (s *Store) Features(ctx context.Context, organizationID string) (map[string]bool, error) {
	rows, err := s.db.Query(ctx,
		`SELECT pack, enabled FROM pack_features WHERE organization_id = $1`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("listing pack features: %w", err)
	}
	defer rows.Close()

	features := map[string]bool{}
	for rows.Next() {
		var pack string
		var enabled bool
		if err := rows.Scan(&pack, &enabled); err != nil {
			return nil, fmt.Errorf("scanning pack feature: %w", err)
		}
		features[pack] = enabled
	}
	return features, rows.Err()
}

// SetFeature enables or disables a pack for an organization.
func (s *Store) SetFeature(ctx context.Context, organizationID, pack string, enabled bool) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO pack_features (organization_id, pack, enabled)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (organization_id, pack) DO UPDATE
		 SET enabled = EXCLUDED.enabled, updated_at = now()`,
		organizationID, pack, enabled)
	if err != nil {
		return fmt.Errorf("setting pack feature: %w", err)
	}
	return nil
}

// Enabled reports whether a single pack is on for the organization.
func Enabled(ctx context.Context, p Provider, organizationID, pack string) (bool, error) {
	features, err := p.Features(ctx, organizationID)
	if err != nil {
		return false, err
	}
	return features[pack], nil
}

var errCacheMiss = errors.New("packs: cache miss")
