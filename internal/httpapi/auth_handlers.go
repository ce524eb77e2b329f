package httpapi

import (
	"errors"
	"net/http"

	"puzzled.app/internal/audit"
	"puzzled.app/internal/auth"
	"puzzled.app/internal/obs"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type adminMeResponse struct {
	User *auth.AdminProfile `json:"user"`
}

type playerMeResponse struct {
	User *auth.PlayerProfile `json:"user"`
}

func (a *API) handleAdminSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var creds auth.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid payload")
		return
	}
	sess, err := a.auth.AdminSignIn(r.Context(), creds)
	if err != nil {
		a.handleAuthError(w, r, "admin_sign_in", err)
		return
	}
	setSessionCookie(w, sess.Token, sess.Lifetime)

	ctx := auth.ContextWithSubject(r.Context(), sess.Subject, sess.Role)
	if sess.LegacyUpgraded {
		_ = audit.LogEvent(ctx, "auth.secret.upgraded", map[string]any{"reason": "legacy"})
	}
	_ = audit.LogEvent(ctx, "auth.admin.sign_in", map[string]any{
		"expires_at": sess.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (a *API) handleAdminSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	clearSessionCookie(w)
	_ = audit.LogEvent(r.Context(), "auth.admin.sign_out", nil)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (a *API) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, _ := readSessionCookie(r)
	profile, err := a.auth.AdminProfile(r.Context(), token)
	if err != nil {
		a.logFailure(r, "admin_me", err)
		profile = nil
	}
	writeJSON(w, http.StatusOK, adminMeResponse{User: profile})
}

func (a *API) handlePlayerSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var creds auth.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid payload")
		return
	}
	id, err := a.auth.PlayerSignUp(r.Context(), creds)
	if err != nil {
		a.handleAuthError(w, r, "player_sign_up", err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithSubject(r.Context(), id, auth.RolePlayer), "auth.player.sign_up", nil)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (a *API) handlePlayerSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var creds auth.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid payload")
		return
	}
	sess, err := a.auth.PlayerSignIn(r.Context(), creds)
	if err != nil {
		a.handleAuthError(w, r, "player_sign_in", err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithSubject(r.Context(), sess.Subject, sess.Role), "auth.player.sign_in", nil)
	writeToken(w, sess)
}

func (a *API) handlePlayerGuest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	sess, err := a.auth.ProvisionGuest(r.Context())
	if err != nil {
		a.handleAuthError(w, r, "player_guest", err)
		return
	}
	_ = audit.LogEvent(auth.ContextWithSubject(r.Context(), sess.Subject, sess.Role), "auth.player.guest", nil)
	writeToken(w, sess)
}

func (a *API) handlePlayerMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, _ := readBearerToken(r)
	profile, err := a.auth.PlayerProfile(r.Context(), token)
	if err != nil {
		a.logFailure(r, "player_me", err)
		profile = nil
	}
	writeJSON(w, http.StatusOK, playerMeResponse{User: profile})
}

func writeToken(w http.ResponseWriter, sess auth.Session) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
		ExpiresIn:   sess.ExpiresIn(),
	})
}

func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, flow string, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidPayload):
		writeError(w, r, http.StatusBadRequest, "Invalid payload")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "Email already taken")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		obs.AuthAttempt(flow, "error")
		a.logFailure(r, flow, err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) logFailure(r *http.Request, flow string, err error) {
	obs.Log("error", "auth_flow_failed", map[string]any{
		"request_id": RequestIDFromContext(r.Context()),
		"flow":       flow,
		"error":      err.Error(),
	})
}
