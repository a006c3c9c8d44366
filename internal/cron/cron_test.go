package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeGrantSweeper struct {
	rows  int64
	err   error
	calls int
}

func (f *fakeGrantSweeper) ExpireEndedGrants(context.Context) (int64, error) {
	f.calls++
	return f.rows, f.err
}

type fakeSessionSweeper struct {
	rows  int64
	calls int
}

func (f *fakeSessionSweeper) CleanExpiredSessions(context.Context) (int64, error) {
	f.calls++
	return f.rows, nil
}

func TestRunSweepDispatch(t *testing.T) {
	grants := &fakeGrantSweeper{rows: 3}
	sessions := &fakeSessionSweeper{rows: 5}
	r := NewRunner(grants, sessions, nil, nil)

	r.runSweep("expire_grants")
	r.runSweep("clean_sessions")

	if grants.calls != 1 {
		t.Errorf("expected 1 grant sweep, got %d", grants.calls)
	}
	if sessions.calls != 1 {
		t.Errorf("expected 1 session sweep, got %d", sessions.calls)
	}
}

func TestRunSweepSurvivesErrors(t *testing.T) {
	grants := &fakeGrantSweeper{err: errors.New("db down")}
	r := NewRunner(grants, &fakeSessionSweeper{}, nil, nil)

	// Must not panic; failures are logged and counted, nothing more.
	r.runSweep("expire_grants")
	if grants.calls != 1 {
		t.Errorf("sweep not attempted")
	}
}

func TestStartAndStop(t *testing.T) {
	r := NewRunner(&fakeGrantSweeper{}, &fakeSessionSweeper{}, nil, nil)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
}
