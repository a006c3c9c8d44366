package api

import (
	"net/http"

	"github.com/courtsidehq/courtside/internal/auth"
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/metrics"
)

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	store      *identity.Store
	limiter    *loginLimiter
	metrics    *metrics.Metrics
	production bool
}

func newAuthHandler(store *identity.Store, limiter *loginLimiter, m *metrics.Metrics, production bool) *authHandler {
	return &authHandler{store: store, limiter: limiter, metrics: m, production: production}
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.allow(clientIP(r)) {
		if h.metrics != nil {
			h.metrics.IncLoginRejection()
		}
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	p, err := h.store.GetPersonByEmail(r.Context(), req.Email)
	if err != nil || !p.Active || !identity.CheckPassword(p, req.Password) {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("password")
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	token, _, err := h.store.CreateSession(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}
	if h.metrics != nil {
		h.metrics.IncAuthSuccess("password")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"person": map[string]interface{}{
			"id":         p.ID,
			"email":      p.Email,
			"first_name": p.FirstName,
			"last_name":  p.LastName,
		},
	})
}

// Me handles GET /api/v1/auth/me. Returns the full unified view the rest
// of the UI renders from.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Logout handles POST /api/v1/auth/logout.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.ExtractBearerToken(r); token != "" {
		_ = h.store.DeleteSession(r.Context(), token)
	}
	clearContextCookie(w, h.production)
	w.WriteHeader(http.StatusNoContent)
}
