package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AdminSessionCookie carries the admin session token.
const AdminSessionCookie = "admin_session"

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// setSessionCookie stores token in an HttpOnly, Secure, SameSite=Lax cookie scoped to "/".
func setSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie overwrites the session cookie with an empty value and Max-Age=0.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// readSessionCookie returns the URL-decoded session cookie value.
func readSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(AdminSessionCookie)
	if err != nil {
		return "", false
	}
	token, err := url.PathUnescape(c.Value)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// readBearerToken accepts exactly "Bearer <token>": case-sensitive scheme,
// one space, and a token without whitespace.
func readBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(authHeader)
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}
	return token, true
}
