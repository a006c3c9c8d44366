package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courtsidehq/courtside/internal/auth"
	"github.com/courtsidehq/courtside/internal/groups"
	"github.com/courtsidehq/courtside/internal/unified"
)

// teamsHandler groups team roster HTTP handlers.
type teamsHandler struct {
	users  *unified.Service
	groups *groups.Store
}

func newTeamsHandler(users *unified.Service, grp *groups.Store) *teamsHandler {
	return &teamsHandler{users: users, groups: grp}
}

// List handles GET /api/v1/teams: every team in the caller's organization.
func (h *teamsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	teams, err := h.groups.ListByOrganization(r.Context(), caller.Person.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// Mine handles GET /api/v1/coach/teams: the teams the caller actively
// belongs to.
func (h *teamsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	teams, err := h.groups.ListActiveGroupsForPerson(r.Context(), caller.Person.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": teams})
}

// Members handles GET /api/v1/teams/{id}/members.
func (h *teamsHandler) Members(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	teamID := chi.URLParam(r, "id")
	users, err := h.users.UsersInTeam(r.Context(), caller, teamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": users})
}

// AddMember handles PUT /api/v1/teams/{id}/members/{personID}.
func (h *teamsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	teamID := chi.URLParam(r, "id")
	personID := chi.URLParam(r, "personID")

	// The body is optional; an empty one means the default member role.
	var req struct {
		Role          string `json:"role"`
		PayerPersonID string `json:"payer_person_id"`
	}
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	if err := h.users.AddUserToTeam(r.Context(), caller, personID, teamID, req.Role, req.PayerPersonID); err != nil {
		writeServiceError(w, err)
		return
	}

	auditLog(r, "team.member.add", "group", teamID,
		"member_id", personID, "member_role", req.Role)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/teams/{id}/members/{personID}.
func (h *teamsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	teamID := chi.URLParam(r, "id")
	personID := chi.URLParam(r, "personID")

	if err := h.users.RemoveUserFromTeam(r.Context(), caller, personID, teamID); err != nil {
		writeServiceError(w, err)
		return
	}

	auditLog(r, "team.member.remove", "group", teamID, "member_id", personID)
	w.WriteHeader(http.StatusNoContent)
}
