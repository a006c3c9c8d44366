package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/courtsidehq/courtside/internal/roles"
)

// contextCookieName holds the JSON-encoded "acting as" role context. The
// cookie is a UI convenience, never an authority: every permission check
// re-validates against actual grants.
const contextCookieName = "courtside_context"

const contextCookieMaxAge = 7 * 24 * time.Hour

// ReadContextCookie decodes the stored role context from the request.
// Missing or malformed cookies mean "no stored context", never an error.
func ReadContextCookie(r *http.Request) *roles.Context {
	c, err := r.Cookie(contextCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var rc roles.Context
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil
	}
	if rc.Role == "" {
		return nil
	}
	return &rc
}

// writeContextCookie persists the role context for a week. Secure is set
// only in production so local development over plain HTTP keeps working.
func writeContextCookie(w http.ResponseWriter, rc *roles.Context, production bool) {
	raw, err := json.Marshal(rc)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     contextCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   int(contextCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearContextCookie removes the stored context, used on logout.
func clearContextCookie(w http.ResponseWriter, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     contextCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	})
}
