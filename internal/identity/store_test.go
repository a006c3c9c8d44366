package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// echoRow scans the recorded insert arguments back out, standing in for a
// RETURNING clause whose columns mirror the inserted values.
type echoRow struct{ vals []any }

func (r echoRow) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return errors.New("unexpected scan destination")
		}
	}
	return nil
}

type sessionRecorder struct {
	args []any
}

func (f *sessionRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *sessionRecorder) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.args = args
	return echoRow{vals: args}
}

func (f *sessionRecorder) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func TestCreateSessionUsesConfiguredTTL(t *testing.T) {
	db := &sessionRecorder{}
	s := &Store{db: db}
	s.SetSessionTTL(24 * time.Hour)

	token, sess, err := s.CreateSession(context.Background(), "p1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != 24*time.Hour {
		t.Errorf("expires_at - created_at = %v, want 24h", got)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(token))
	}
	if hashToken(token) != sess.TokenHash {
		t.Error("stored token hash should be the sha256 of the plaintext token")
	}
}

func TestCreateSessionDefaultTTL(t *testing.T) {
	s := &Store{db: &sessionRecorder{}}

	_, sess, err := s.CreateSession(context.Background(), "p1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != defaultSessionTTL {
		t.Errorf("expires_at - created_at = %v, want %v", got, defaultSessionTTL)
	}
}

func TestWithTxKeepsSessionTTL(t *testing.T) {
	s := &Store{db: &sessionRecorder{}}
	s.SetSessionTTL(time.Hour)

	if tx := s.WithTx(nil); tx.sessionTTL != time.Hour {
		t.Errorf("transaction-bound store lost the configured TTL: %v", tx.sessionTTL)
	}
}
