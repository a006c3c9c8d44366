package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

// SessionLookup resolves an opaque session token to a person.
type SessionLookup interface {
	GetSessionPerson(ctx context.Context, plaintext string) (*identity.Person, error)
}

// UserSource builds the unified view for an authenticated subject.
type UserSource interface {
	ByAuthUID(ctx context.Context, authUID string, stored *roles.Context) (*unified.User, error)
	ByPersonIDWithContext(ctx context.Context, personID string, stored *roles.Context) (*unified.User, error)
}

// Authenticator resolves bearer credentials to a unified user. Two token
// shapes are accepted: a platform-issued HS256 JWT whose subject is the
// person's auth uid, and a locally-issued opaque session token.
type Authenticator struct {
	jwtSecret []byte
	sessions  SessionLookup
	users     UserSource
	logger    *slog.Logger
}

// NewAuthenticator creates an authenticator. An empty secret disables the
// JWT path; opaque sessions still work.
func NewAuthenticator(jwtSecret string, sessions SessionLookup, users UserSource, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		jwtSecret: []byte(jwtSecret),
		sessions:  sessions,
		users:     users,
		logger:    logger,
	}
}

// Authenticate resolves the request's bearer token to a unified user,
// restoring the stored role context. Returns unified.ErrUnauthenticated
// for missing, malformed, expired or unmatched credentials.
func (a *Authenticator) Authenticate(r *http.Request, stored *roles.Context) (*unified.User, error) {
	token := ExtractBearerToken(r)
	if token == "" {
		return nil, unified.ErrUnauthenticated
	}

	var u *unified.User
	var err error
	if looksLikeJWT(token) {
		var authUID string
		authUID, err = a.verifyJWT(token)
		if err != nil {
			a.logger.Debug("jwt verification failed", "error", err)
			return nil, unified.ErrUnauthenticated
		}
		u, err = a.users.ByAuthUID(r.Context(), authUID, stored)
	} else {
		var p *identity.Person
		p, err = a.sessions.GetSessionPerson(r.Context(), token)
		if errors.Is(err, identity.ErrNotFound) {
			return nil, unified.ErrUnauthenticated
		}
		if err != nil {
			return nil, err
		}
		u, err = a.users.ByPersonIDWithContext(r.Context(), p.ID, stored)
		if errors.Is(err, unified.ErrNotFound) {
			return nil, unified.ErrUnauthenticated
		}
	}
	if err != nil {
		return nil, err
	}
	if !u.Person.Active {
		return nil, unified.ErrUnauthenticated
	}
	return u, nil
}

func (a *Authenticator) verifyJWT(token string) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", errors.New("jwt auth disabled")
	}
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return a.jwtSecret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// looksLikeJWT distinguishes the two accepted token shapes. Opaque
// session tokens are hex and never contain dots.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// ExtractBearerToken pulls the token out of the Authorization header,
// returning "" when absent or malformed.
func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
