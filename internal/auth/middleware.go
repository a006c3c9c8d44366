package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

type contextKey int

const userContextKey contextKey = iota

// ContextWithUser returns a new context carrying the given unified user.
func ContextWithUser(ctx context.Context, user *unified.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the unified user from the context, or nil if
// not present.
func UserFromContext(ctx context.Context) *unified.User {
	user, _ := ctx.Value(userContextKey).(*unified.User)
	return user
}

// ContextReader extracts the stored role context from a request. The HTTP
// layer supplies the cookie-backed implementation; this package never
// touches cookies itself.
type ContextReader func(r *http.Request) *roles.Context

// CapabilityGate answers scoped permission checks for route guards.
type CapabilityGate interface {
	HasCapability(ctx context.Context, personID string, cap roles.Capability, rc *roles.Context) (bool, error)
	HasRole(ctx context.Context, personID string, role roles.Role, rc *roles.Context) (bool, error)
}

// SessionMiddleware authenticates the request and injects the unified
// user into the request context. Unauthenticated requests are rejected
// with 401 before reaching any handler.
func SessionMiddleware(a *Authenticator, readContext ContextReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var stored *roles.Context
			if readContext != nil {
				stored = readContext(r)
			}
			user, err := a.Authenticate(r, stored)
			if err != nil {
				writeUnauthorized(w, "invalid or missing credentials")
				return
			}
			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability guards a subtree behind a capability check in the
// user's current context. 401 without a user, 403 when denied.
func RequireCapability(gate CapabilityGate, cap roles.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeUnauthorized(w, "authentication required")
				return
			}
			ok, err := gate.HasCapability(r.Context(), user.Person.ID, cap, user.CurrentContext)
			if err != nil {
				writeForbidden(w, "permission check failed")
				return
			}
			if !ok {
				writeForbidden(w, "missing capability: "+string(cap))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole guards a subtree behind a role check in the user's current
// context.
func RequireRole(gate CapabilityGate, role roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeUnauthorized(w, "authentication required")
				return
			}
			ok, err := gate.HasRole(r.Context(), user.Person.ID, role, user.CurrentContext)
			if err != nil {
				writeForbidden(w, "permission check failed")
				return
			}
			if !ok {
				writeForbidden(w, "role required: "+string(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits only users with an admin or superadmin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			writeUnauthorized(w, "authentication required")
			return
		}
		if !user.IsAdmin() {
			writeForbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: "unauthorized", Message: message},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: "forbidden", Message: message},
	})
}
