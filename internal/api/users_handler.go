package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courtsidehq/courtside/internal/auth"
	"github.com/courtsidehq/courtside/internal/roles"
	"github.com/courtsidehq/courtside/internal/unified"
)

// usersHandler groups user HTTP handlers.
type usersHandler struct {
	users *unified.Service
}

func newUsersHandler(users *unified.Service) *usersHandler {
	return &usersHandler{users: users}
}

// Get handles GET /api/v1/users/{id}. Members may fetch themselves;
// anything else requires admin.
func (h *usersHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}
	id := chi.URLParam(r, "id")
	if id != caller.Person.ID && !caller.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden", "insufficient permission")
		return
	}

	u, err := h.users.ByPersonID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if u.Person.OrganizationID != caller.Person.OrganizationID && !caller.Superadmin {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// List handles GET /api/v1/users?role=coach&domain=&organization_id=&include_inactive=.
// The optional domain parameter disambiguates role names valid in both
// domains; "role=admin&domain=basketball" lists basketball-domain admins.
func (h *usersHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	role := roles.Role(r.URL.Query().Get("role"))
	if role == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "role query parameter is required")
		return
	}
	domain := roles.Domain(r.URL.Query().Get("domain"))
	orgID := r.URL.Query().Get("organization_id")
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	users, err := h.users.UsersByRole(r.Context(), caller, role, domain, orgID, includeInactive)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// Put handles PUT /api/v1/users: the admin provisioning endpoint. Creates
// or updates a person by email and, when a role list is supplied,
// replaces their basketball grants wholesale.
func (h *usersHandler) Put(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	var in unified.CreateOrUpdateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	personID, err := h.users.CreateOrUpdateUser(r.Context(), caller, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	auditLog(r, "user.upsert", "person", personID,
		"email", in.Email, "roles", len(in.BasketballRoles))
	writeJSON(w, http.StatusOK, map[string]interface{}{"person_id": personID})
}
