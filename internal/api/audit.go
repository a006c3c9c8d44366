package api

import (
	"log/slog"
	"net/http"

	"github.com/courtsidehq/courtside/internal/auth"
)

// auditLog emits a structured audit log entry for an administrative action.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", clientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}

	if u := auth.UserFromContext(r.Context()); u != nil {
		attrs = append(attrs, "person_id", u.Person.ID, "person_email", u.Person.Email)
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}
