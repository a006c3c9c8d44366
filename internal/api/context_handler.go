package api

import (
	"net/http"

	"github.com/courtsidehq/courtside/internal/auth"
	"github.com/courtsidehq/courtside/internal/metrics"
	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

// contextHandler serves the role context switcher. The persisted cookie
// is written only here; everything below the HTTP layer receives the
// context as an explicit parameter.
type contextHandler struct {
	users      *unified.Service
	metrics    *metrics.Metrics
	production bool
}

func newContextHandler(users *unified.Service, m *metrics.Metrics, production bool) *contextHandler {
	return &contextHandler{users: users, metrics: m, production: production}
}

// Get handles GET /api/v1/context: the current context plus every context
// the person could switch into.
func (h *contextHandler) Get(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current":   u.CurrentContext,
		"available": u.AvailableContexts,
	})
}

// Switch handles POST /api/v1/context. On success the new context is
// persisted in the cookie; a rejected switch changes nothing.
func (h *contextHandler) Switch(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var req struct {
		Role           roles.Role `json:"role"`
		OrganizationID string     `json:"organization_id,omitempty"`
		GroupID        string     `json:"group_id,omitempty"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	if req.Role == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "role is required")
		return
	}

	rc, err := h.users.SwitchContext(r.Context(), u, req.Role, roles.Context{
		OrganizationID: req.OrganizationID,
		GroupID:        req.GroupID,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncContextSwitch("denied")
		}
		writeServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncContextSwitch("switched")
	}

	writeContextCookie(w, rc, h.production)
	auditLog(r, "context.switch", "role_context", string(rc.Role),
		"group_id", rc.GroupID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"current": rc})
}
