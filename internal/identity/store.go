package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when a person, profile or organization does
// not exist.
var ErrNotFound = errors.New("identity: not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the store can
// participate in the builder's transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides database operations for persons, profiles,
// organizations and sessions.
type Store struct {
	db         querier
	sessionTTL time.Duration
}

// NewStore creates an identity store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, sessionTTL: defaultSessionTTL}
}

// SetSessionTTL overrides the default session lifetime. Set once at
// startup, before the store is shared.
func (s *Store) SetSessionTTL(d time.Duration) {
	if d > 0 {
		s.sessionTTL = d
	}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx, sessionTTL: s.sessionTTL}
}

const personColumns = `id, organization_id, auth_uid, email, password_hash,
	 first_name, last_name, active, admin, superadmin,
	 created_by, updated_by, created_at, updated_at`

func scanPerson(scan func(dest ...any) error) (*Person, error) {
	p := &Person{}
	err := scan(&p.ID, &p.OrganizationID, &p.AuthUID, &p.Email, &p.PasswordHash,
		&p.FirstName, &p.LastName, &p.Active, &p.Admin, &p.Superadmin,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePerson inserts a new person. The password is optional; persons
// provisioned through the platform identity provider authenticate with a
// bearer token and never log in locally.
func (s *Store) CreatePerson(ctx context.Context, in CreatePersonInput) (*Person, error) {
	var hash string
	if in.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		hash = string(h)
	}

	p, err := scanPerson(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO people
			   (id, organization_id, auth_uid, email, password_hash,
			    first_name, last_name, created_by, updated_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			 RETURNING `+personColumns,
			uuid.NewString(), in.OrganizationID, in.AuthUID,
			strings.ToLower(in.Email), hash, in.FirstName, in.LastName,
			in.CreatedBy,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}
	return p, nil
}

// GetPersonByID retrieves a person by primary key.
func (s *Store) GetPersonByID(ctx context.Context, id string) (*Person, error) {
	p, err := scanPerson(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+personColumns+` FROM people WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting person by id: %w", err)
	}
	return p, err
}

// GetPersonByEmail retrieves a person by email address.
func (s *Store) GetPersonByEmail(ctx context.Context, email string) (*Person, error) {
	p, err := scanPerson(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+personColumns+` FROM people WHERE email = $1`,
			strings.ToLower(email),
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting person by email: %w", err)
	}
	return p, err
}

// GetPersonByAuthUID retrieves a person by their identity-provider subject.
func (s *Store) GetPersonByAuthUID(ctx context.Context, authUID string) (*Person, error) {
	p, err := scanPerson(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+personColumns+` FROM people WHERE auth_uid = $1`, authUID,
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting person by auth uid: %w", err)
	}
	return p, err
}

// GetPersonsByIDs retrieves the persons for the given ids. Missing ids
// are silently skipped; the result order follows the database, not the
// input.
func (s *Store) GetPersonsByIDs(ctx context.Context, ids []string) ([]*Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = ANY($1)
		 ORDER BY last_name, first_name`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing persons by ids: %w", err)
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		p, err := scanPerson(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning person row: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// UpdatePerson performs a partial update on the person with the given id.
func (s *Store) UpdatePerson(ctx context.Context, id string, in UpdatePersonInput) (*Person, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argIdx))
		args = append(args, strings.ToLower(*in.Email))
		argIdx++
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", argIdx))
		args = append(args, string(hash))
		argIdx++
	}
	if in.FirstName != nil {
		setClauses = append(setClauses, fmt.Sprintf("first_name = $%d", argIdx))
		args = append(args, *in.FirstName)
		argIdx++
	}
	if in.LastName != nil {
		setClauses = append(setClauses, fmt.Sprintf("last_name = $%d", argIdx))
		args = append(args, *in.LastName)
		argIdx++
	}
	if in.Active != nil {
		setClauses = append(setClauses, fmt.Sprintf("active = $%d", argIdx))
		args = append(args, *in.Active)
		argIdx++
	}
	if in.Admin != nil {
		setClauses = append(setClauses, fmt.Sprintf("admin = $%d", argIdx))
		args = append(args, *in.Admin)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetPersonByID(ctx, id)
	}

	if in.UpdatedBy != "" {
		setClauses = append(setClauses, fmt.Sprintf("updated_by = $%d", argIdx))
		args = append(args, in.UpdatedBy)
		argIdx++
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE people SET %s WHERE id = $%d RETURNING `+personColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	p, err := scanPerson(func(dest ...any) error {
		return s.db.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("updating person: %w", err)
	}
	return p, nil
}

const profileColumns = `id, person_id, person_type, display_name,
	 admin, superadmin, created_at, updated_at`

func scanProfile(scan func(dest ...any) error) (*Profile, error) {
	pr := &Profile{}
	err := scan(&pr.ID, &pr.PersonID, &pr.PersonType, &pr.DisplayName,
		&pr.Admin, &pr.Superadmin, &pr.CreatedAt, &pr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// GetProfile retrieves a person's basketball profile.
func (s *Store) GetProfile(ctx context.Context, personID string) (*Profile, error) {
	pr, err := scanProfile(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE person_id = $1`, personID,
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return pr, err
}

// UpsertProfile creates or refreshes a person's basketball profile.
func (s *Store) UpsertProfile(ctx context.Context, personID, personType, displayName string) (*Profile, error) {
	pr, err := scanProfile(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO profiles (id, person_id, person_type, display_name)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (person_id) DO UPDATE
			 SET person_type = EXCLUDED.person_type,
			     display_name = EXCLUDED.display_name,
			     updated_at = now()
			 RETURNING `+profileColumns,
			uuid.NewString(), personID, personType, displayName,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("upserting profile: %w", err)
	}
	return pr, nil
}

// IsSuperadmin reports whether the person carries the superadmin flag on
// either the person record or their basketball profile.
func (s *Store) IsSuperadmin(ctx context.Context, personID string) (bool, error) {
	var super bool
	err := s.db.QueryRow(ctx,
		`SELECT p.superadmin OR COALESCE(pr.superadmin, false)
		 FROM people p
		 LEFT JOIN profiles pr ON pr.person_id = p.id
		 WHERE p.id = $1`, personID,
	).Scan(&super)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking superadmin flag: %w", err)
	}
	return super, nil
}

// CreateOrganization inserts a new tenant.
func (s *Store) CreateOrganization(ctx context.Context, name, slug string) (*Organization, error) {
	o := &Organization{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO organizations (id, name, slug)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, slug, active, created_at`,
		uuid.NewString(), name, slug,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Active, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	return o, nil
}

// GetOrganization retrieves an organization by primary key.
func (s *Store) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	o := &Organization{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, slug, active, created_at
		 FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Active, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting organization: %w", err)
	}
	return o, nil
}

// CheckPassword verifies a plaintext password against the person's stored
// hash. Persons without a local password always fail.
func CheckPassword(p *Person, password string) bool {
	if p.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}

// CreateSession creates a new session for the given person. It returns the
// opaque plaintext token (to be sent to the client) and the stored session.
func (s *Store) CreateSession(ctx context.Context, personID string) (string, *Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, fmt.Errorf("generating session token: %w", err)
	}
	plaintext := hex.EncodeToString(b)
	tokenHash := hashToken(plaintext)

	ttl := s.sessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	sess := &Session{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (token_hash, person_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING token_hash, person_id, created_at, expires_at`,
		tokenHash, personID, now, expiresAt,
	).Scan(&sess.TokenHash, &sess.PersonID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}

	return plaintext, sess, nil
}

// GetSessionPerson looks up a session by its plaintext token and returns
// the associated person. Expired or unknown tokens yield ErrNotFound.
func (s *Store) GetSessionPerson(ctx context.Context, plaintext string) (*Person, error) {
	tokenHash := hashToken(plaintext)

	p, err := scanPerson(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT p.id, p.organization_id, p.auth_uid, p.email, p.password_hash,
			        p.first_name, p.last_name, p.active, p.admin, p.superadmin,
			        p.created_by, p.updated_by, p.created_at, p.updated_at
			 FROM sessions s JOIN people p ON s.person_id = p.id
			 WHERE s.token_hash = $1 AND s.expires_at > now()`,
			tokenHash,
		).Scan(dest...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting session person: %w", err)
	}
	return p, err
}

// DeleteSession removes a session by its plaintext token.
func (s *Store) DeleteSession(ctx context.Context, plaintext string) error {
	tokenHash := hashToken(plaintext)
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CleanExpiredSessions deletes all sessions that have expired.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func hashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
