package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courtsidehq/courtside/internal/auth"
	"github.com/courtsidehq/courtside/internal/groups"
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/metrics"
	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Identity      *identity.Store
	Groups        *groups.Store
	Users         *unified.Service
	Resolver      *roles.Resolver
	Authenticator *auth.Authenticator
	Metrics       *metrics.Metrics
	CORSOrigins   []string
	Production    bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.CORSOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	limiter := newLoginLimiter(10, time.Minute)
	authH := newAuthHandler(deps.Identity, limiter, deps.Metrics, deps.Production)
	contextH := newContextHandler(deps.Users, deps.Metrics, deps.Production)
	usersH := newUsersHandler(deps.Users)
	teamsH := newTeamsHandler(deps.Users, deps.Groups)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics: Prometheus scrape format plus the JSON live summary.
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
		r.Get("/metrics/summary", deps.Metrics.Handler())
	}

	// Public (unauthenticated) routes.
	r.Post("/api/v1/auth/login", authH.Login)
	r.Post("/api/v1/auth/logout", authH.Logout)

	// Authenticated routes. The session middleware restores the role
	// context from the cookie and injects the unified user.
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(auth.SessionMiddleware(deps.Authenticator, ReadContextCookie))

		ar.Get("/auth/me", authH.Me)

		ar.Get("/context", contextH.Get)
		ar.Post("/context", contextH.Switch)

		ar.Get("/users", usersH.List)
		ar.Get("/users/{id}", usersH.Get)
		ar.With(auth.RequireAdmin).Put("/users", usersH.Put)

		ar.Get("/teams/{id}/members", teamsH.Members)
		ar.Put("/teams/{id}/members/{personID}", teamsH.AddMember)
		ar.Delete("/teams/{id}/members/{personID}", teamsH.RemoveMember)

		gate := instrumentGate(deps.Resolver, deps.Metrics)

		// Team directory needs roster visibility in the current context.
		ar.With(auth.RequireCapability(gate, roles.CapViewTeamPlayers)).
			Get("/teams", teamsH.List)

		// Coach-facing view of their own teams.
		ar.With(auth.RequireRole(gate, roles.RoleCoach)).
			Get("/coach/teams", teamsH.Mine)
	})

	return r
}

// instrumentedGate wraps the permission resolver so every guard decision
// lands in the capability-check counter.
type instrumentedGate struct {
	gate    auth.CapabilityGate
	metrics *metrics.Metrics
}

func instrumentGate(gate auth.CapabilityGate, m *metrics.Metrics) auth.CapabilityGate {
	if m == nil {
		return gate
	}
	return &instrumentedGate{gate: gate, metrics: m}
}

func (g *instrumentedGate) HasCapability(ctx context.Context, personID string, cap roles.Capability, rc *roles.Context) (bool, error) {
	ok, err := g.gate.HasCapability(ctx, personID, cap, rc)
	g.metrics.IncCapabilityCheck(string(cap), outcomeLabel(ok, err))
	return ok, err
}

func (g *instrumentedGate) HasRole(ctx context.Context, personID string, role roles.Role, rc *roles.Context) (bool, error) {
	ok, err := g.gate.HasRole(ctx, personID, role, rc)
	g.metrics.IncCapabilityCheck("role:"+string(role), outcomeLabel(ok, err))
	return ok, err
}

func outcomeLabel(ok bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case ok:
		return "allowed"
	default:
		return "denied"
	}
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// metricsMiddleware records per-request counters and latency using the
// chi route pattern so path cardinality stays bounded.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.ObserveHTTPRequest(r.Method, pattern, ww.Status(),
				time.Since(start).Seconds(), ww.BytesWritten())
		})
	}
}
