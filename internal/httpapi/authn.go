package httpapi

import (
	"net/http"

	"puzzled.app/internal/auth"
	"puzzled.app/internal/obs"
)

// RequireAdmin admits requests carrying a valid admin session cookie.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return a.gate("admin", readSessionCookie, auth.RoleAdmin, next)
}

// RequirePlayer admits requests carrying a valid bearer token.
func (a *API) RequirePlayer(next http.Handler) http.Handler {
	return a.gate("player", readBearerToken, "", next)
}

// gate never consults the directory: signed claims are trusted until they expire.
func (a *API) gate(name string, extract func(*http.Request) (string, bool), role auth.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extract(r)
		if !ok {
			a.reject(w, r, name)
			return
		}
		claims, err := a.auth.Authenticate(token, role)
		if err != nil {
			a.reject(w, r, name)
			return
		}
		ctx := auth.ContextWithSubject(r.Context(), claims.Subject, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) reject(w http.ResponseWriter, r *http.Request, gate string) {
	obs.GateRejected(gate)
	if gate == "player" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="puzzled"`)
	}
	writeError(w, r, http.StatusUnauthorized, "Unauthorized")
}
