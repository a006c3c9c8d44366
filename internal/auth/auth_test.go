package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

const testSecret = "test-secret"

type fakeSessions struct {
	tokens map[string]*identity.Person
}

func (f *fakeSessions) GetSessionPerson(_ context.Context, plaintext string) (*identity.Person, error) {
	if p, ok := f.tokens[plaintext]; ok {
		return p, nil
	}
	return nil, identity.ErrNotFound
}

type fakeUsers struct {
	byAuthUID map[string]*unified.User
	byID      map[string]*unified.User
	stored    *roles.Context
}

func (f *fakeUsers) ByAuthUID(_ context.Context, authUID string, stored *roles.Context) (*unified.User, error) {
	f.stored = stored
	if u, ok := f.byAuthUID[authUID]; ok {
		return u, nil
	}
	return nil, unified.ErrUnauthenticated
}

func (f *fakeUsers) ByPersonIDWithContext(_ context.Context, personID string, stored *roles.Context) (*unified.User, error) {
	f.stored = stored
	if u, ok := f.byID[personID]; ok {
		return u, nil
	}
	return nil, unified.ErrNotFound
}

func activeUser(personID, authUID string) *unified.User {
	return &unified.User{Person: identity.Person{ID: personID, AuthUID: authUID, Active: true}}
}

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func requestWithBearer(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthenticateMissingHeader(t *testing.T) {
	a := NewAuthenticator(testSecret, &fakeSessions{}, &fakeUsers{}, nil)

	_, err := a.Authenticate(requestWithBearer(""), nil)
	if err != unified.ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthenticateJWT(t *testing.T) {
	users := &fakeUsers{byAuthUID: map[string]*unified.User{
		"auth-p1": activeUser("p1", "auth-p1"),
	}}
	a := NewAuthenticator(testSecret, &fakeSessions{}, users, nil)

	u, err := a.Authenticate(requestWithBearer(signToken(t, testSecret, "auth-p1", time.Hour)), nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Person.ID != "p1" {
		t.Errorf("wrong user resolved: %s", u.Person.ID)
	}
}

func TestAuthenticateJWTRejectsBadTokens(t *testing.T) {
	users := &fakeUsers{byAuthUID: map[string]*unified.User{
		"auth-p1": activeUser("p1", "auth-p1"),
	}}
	a := NewAuthenticator(testSecret, &fakeSessions{}, users, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", "auth-p1", time.Hour)},
		{"expired", signToken(t, testSecret, "auth-p1", -time.Hour)},
		{"no subject", signToken(t, testSecret, "", time.Hour)},
		{"unknown subject", signToken(t, testSecret, "auth-nobody", time.Hour)},
		{"garbage", "a.b.c"},
	}
	for _, tt := range tests {
		_, err := a.Authenticate(requestWithBearer(tt.token), nil)
		if err == nil {
			t.Errorf("%s: expected rejection", tt.name)
		}
	}
}

func TestAuthenticateOpaqueSession(t *testing.T) {
	p := &identity.Person{ID: "p1", Active: true}
	sessions := &fakeSessions{tokens: map[string]*identity.Person{"deadbeef": p}}
	users := &fakeUsers{byID: map[string]*unified.User{"p1": activeUser("p1", "")}}
	a := NewAuthenticator(testSecret, sessions, users, nil)

	stored := &roles.Context{OrganizationID: "org-1", Role: roles.RoleCoach}
	u, err := a.Authenticate(requestWithBearer("deadbeef"), stored)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Person.ID != "p1" {
		t.Errorf("wrong user resolved: %s", u.Person.ID)
	}
	if users.stored != stored {
		t.Error("stored context not passed through to the builder")
	}

	_, err = a.Authenticate(requestWithBearer("unknown-token"), nil)
	if err != unified.ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthenticateInactivePerson(t *testing.T) {
	inactive := &unified.User{Person: identity.Person{ID: "p1", AuthUID: "auth-p1", Active: false}}
	users := &fakeUsers{byAuthUID: map[string]*unified.User{"auth-p1": inactive}}
	a := NewAuthenticator(testSecret, &fakeSessions{}, users, nil)

	_, err := a.Authenticate(requestWithBearer(signToken(t, testSecret, "auth-p1", time.Hour)), nil)
	if err != unified.ErrUnauthenticated {
		t.Fatalf("deactivated person must not authenticate, got %v", err)
	}
}

type fakeGate struct {
	caps  map[string]bool
	roles map[string]bool
}

func (f *fakeGate) HasCapability(_ context.Context, personID string, cap roles.Capability, _ *roles.Context) (bool, error) {
	return f.caps[personID+"/"+string(cap)], nil
}

func (f *fakeGate) HasRole(_ context.Context, personID string, role roles.Role, _ *roles.Context) (bool, error) {
	return f.roles[personID+"/"+string(role)], nil
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireCapability(t *testing.T) {
	gate := &fakeGate{caps: map[string]bool{"p1/view_team_players": true}}
	next, called := okHandler()
	h := RequireCapability(gate, roles.CapViewTeamPlayers)(next)

	// No user in context.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no user: expected 401, got %d", w.Code)
	}

	// User without the capability.
	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithUser(r.Context(), activeUser("p2", "")))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("denied: expected 403, got %d", w.Code)
	}
	if *called {
		t.Error("handler must not run when denied")
	}

	// User with the capability.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithUser(r.Context(), activeUser("p1", "")))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK || !*called {
		t.Errorf("allowed: expected 200 and handler run, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	gate := &fakeGate{roles: map[string]bool{"p1/coach": true}}
	next, _ := okHandler()
	h := RequireRole(gate, roles.RoleCoach)(next)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithUser(r.Context(), activeUser("p1", "")))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithUser(r.Context(), activeUser("p2", "")))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	next, _ := okHandler()
	h := RequireAdmin(next)

	admin := activeUser("p1", "")
	admin.Person.Admin = true

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithUser(r.Context(), admin))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithUser(r.Context(), activeUser("p2", "")))
	h.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("member: expected 403, got %d", w.Code)
	}
}
