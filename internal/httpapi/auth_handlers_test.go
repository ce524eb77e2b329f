package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"testing"
	"time"

	"puzzled.app/internal/auth"
)

type meAdmin struct {
	User *auth.AdminProfile `json:"user"`
}

type mePlayer struct {
	User *auth.PlayerProfile `json:"user"`
}

func TestAdminSignInUpgradesLegacySecret(t *testing.T) {
	c := newTestAPI(t)
	id := c.seedAdmin("root@example.com", "hunter2")

	rr := c.do(http.MethodPost, "/api/admin/sign_in", map[string]string{
		"email":    " Root@Example.com ",
		"password": "hunter2",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign in: unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	if !decode[okResponse](t, rr).OK {
		t.Fatalf("expected ok=true")
	}
	cookie := sessionCookie(t, rr)
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}

	rec, err := c.store.Admins(context.Background()).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if !strings.HasPrefix(rec.StoredSecret, "pbkdf2$") {
		t.Fatalf("expected upgraded secret, got %q", rec.StoredSecret)
	}
	if !c.hasher.Verify("hunter2", rec.StoredSecret) {
		t.Fatalf("upgraded secret does not verify")
	}

	rr = c.do(http.MethodGet, "/api/admin/me", nil, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("me: unexpected status %d", rr.Code)
	}
	me := decode[meAdmin](t, rr)
	if me.User == nil || me.User.ID != id || me.User.Email != "root@example.com" || me.User.Role != auth.RoleAdmin {
		t.Fatalf("unexpected profile: %+v", me.User)
	}

	// The plaintext is gone; a second sign-in goes through the hash.
	rr = c.do(http.MethodPost, "/api/admin/sign_in", map[string]string{
		"email":    "root@example.com",
		"password": "hunter2",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second sign in: unexpected status %d", rr.Code)
	}
}

func TestAdminSignInFailures(t *testing.T) {
	c := newTestAPI(t)
	hashed, err := c.hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	c.seedAdmin("admin@example.com", hashed)
	c.seedAdmin("bcrypt@example.com", "$2a$10$abcdefghijklmnopqrstuv")

	cases := []struct {
		name string
		body any
		want int
	}{
		{"wrong password", map[string]string{"email": "admin@example.com", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "ghost@example.com", "password": "correct horse"}, http.StatusUnauthorized},
		{"unrecognized format", map[string]string{"email": "bcrypt@example.com", "password": "$2a$10$abcdefghijklmnopqrstuv"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "admin@example.com"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "password": "x"}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
		{"empty body", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := c.do(http.MethodPost, "/api/admin/sign_in", tc.body, nil)
		if rr.Code != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.name, rr.Code, tc.want)
		}
		if len(rr.Result().Cookies()) != 0 {
			t.Fatalf("%s: no cookie expected on failure", tc.name)
		}
	}
}

func TestAdminMeWithoutSession(t *testing.T) {
	c := newTestAPI(t)

	playerToken, _, err := c.svc.Tokens().Issue("player-1", auth.RolePlayer, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ghostToken, _, err := c.svc.Tokens().Issue("01ARZ3NDEKTSV4RRFFQ69G5FAV", auth.RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for name, mutate := range map[string]func(*http.Request){
		"no cookie":    nil,
		"player token": withCookie(&http.Cookie{Name: AdminSessionCookie, Value: playerToken}),
		"unknown id":   withCookie(&http.Cookie{Name: AdminSessionCookie, Value: ghostToken}),
		"garbage":      withCookie(&http.Cookie{Name: AdminSessionCookie, Value: "x.y.z"}),
	} {
		rr := c.do(http.MethodGet, "/api/admin/me", nil, mutate)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", name, rr.Code)
		}
		if strings.TrimSpace(rr.Body.String()) != `{"user":null}` {
			t.Fatalf("%s: unexpected body %s", name, rr.Body.String())
		}
	}
}

func TestAdminSignOutClearsCookie(t *testing.T) {
	c := newTestAPI(t)
	hashed, err := c.hasher.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	c.seedAdmin("a@example.com", hashed)

	rr := c.do(http.MethodPost, "/api/admin/sign_in", map[string]string{"email": "a@example.com", "password": "pw"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign in: unexpected status %d", rr.Code)
	}

	rr = c.do(http.MethodPost, "/api/admin/sign_out", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign out: unexpected status %d", rr.Code)
	}
	cleared := sessionCookie(t, rr)
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cleared)
	}

	// A browser drops the cookie, so the next me call arrives without it.
	rr = c.do(http.MethodGet, "/api/admin/me", nil, nil)
	if strings.TrimSpace(rr.Body.String()) != `{"user":null}` {
		t.Fatalf("unexpected body after sign out: %s", rr.Body.String())
	}
}

func TestPlayerSignUpAndSignIn(t *testing.T) {
	c := newTestAPI(t)
	creds := map[string]string{"email": "p@example.com", "password": "s3cret"}

	rr := c.do(http.MethodPost, "/api/player/sign_up", creds, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign up: unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	rr = c.do(http.MethodPost, "/api/player/sign_up", map[string]string{"email": "P@example.com", "password": "other"}, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate sign up: unexpected status %d", rr.Code)
	}
	if body := decode[map[string]any](t, rr); body["error"] != "Email already taken" {
		t.Fatalf("unexpected conflict body: %v", body)
	}

	rr = c.do(http.MethodPost, "/api/player/sign_in", map[string]string{"email": "p@example.com", "password": "wrong"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: unexpected status %d", rr.Code)
	}

	rr = c.do(http.MethodPost, "/api/player/sign_in", creds, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign in: unexpected status %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected Cache-Control: no-store")
	}
	tok := decode[tokenResponse](t, rr)
	if tok.AccessToken == "" || tok.TokenType != "Bearer" || tok.ExpiresIn != int64(auth.DefaultTokenLifetime/time.Second) {
		t.Fatalf("unexpected token response: %+v", tok)
	}

	rr = c.do(http.MethodGet, "/api/player/me", nil, withBearer(tok.AccessToken))
	me := decode[mePlayer](t, rr)
	if me.User == nil || me.User.Email == nil || *me.User.Email != "p@example.com" || me.User.IsGuest {
		t.Fatalf("unexpected profile: %+v", me.User)
	}
}

func TestPlayerLegacySecretIsNotAccepted(t *testing.T) {
	c := newTestAPI(t)
	if _, err := c.store.Players(context.Background()).Insert(context.Background(), &auth.Record{
		Email:        "old@example.com",
		StoredSecret: "plaintext",
	}); err != nil {
		t.Fatalf("seed player: %v", err)
	}
	rr := c.do(http.MethodPost, "/api/player/sign_in", map[string]string{"email": "old@example.com", "password": "plaintext"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestGuestFlow(t *testing.T) {
	c := newTestAPI(t)

	rr := c.do(http.MethodPost, "/api/player/guest", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("guest: unexpected status %d", rr.Code)
	}
	tok := decode[tokenResponse](t, rr)

	rr = c.do(http.MethodGet, "/api/player/me", nil, withBearer(tok.AccessToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("me: unexpected status %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"email":null`) || !strings.Contains(body, `"is_guest":true`) {
		t.Fatalf("unexpected guest profile: %s", body)
	}

	rr = c.do(http.MethodPost, "/api/player/guest", nil, nil)
	other := decode[tokenResponse](t, rr)
	if other.AccessToken == tok.AccessToken {
		t.Fatalf("guests must get distinct tokens")
	}
}

func TestPlayerMeWithoutToken(t *testing.T) {
	c := newTestAPI(t)
	rr := c.do(http.MethodGet, "/api/player/me", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"user":null}` {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestLegacyPlayerRoutes(t *testing.T) {
	c := newTestAPI(t)
	creds := map[string]string{"email": "v1@example.com", "password": "pw"}

	if rr := c.do(http.MethodPost, "/api/v1/players/sign_up", creds, nil); rr.Code != http.StatusOK {
		t.Fatalf("v1 sign up: %d", rr.Code)
	}
	rr := c.do(http.MethodPost, "/api/v1/players/sign_in", creds, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("v1 sign in: %d", rr.Code)
	}
	tok := decode[tokenResponse](t, rr)
	rr = c.do(http.MethodGet, "/api/v1/players/profile", nil, withBearer(tok.AccessToken))
	if me := decode[mePlayer](t, rr); me.User == nil {
		t.Fatalf("expected profile on v1 route")
	}
	if rr := c.do(http.MethodPost, "/api/v1/players/guest/sign_up", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("v1 guest: %d", rr.Code)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	c := newTestAPI(t)
	c.api = New(ReadyProbe{}, "test", c.svc, Options{RateBurst: 2, RatePerSec: 1})

	var last int
	for i := 0; i < 3; i++ {
		last = c.do(http.MethodPost, "/api/player/guest", nil, nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
	// Non-auth routes are not limited.
	if rr := c.do(http.MethodGet, "/healthz", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
}

func TestSignInLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	c := newTestAPI(t)
	hashed, err := c.hasher.Hash("right")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	c.seedAdmin("root@example.com", hashed)
	c.api = New(ReadyProbe{}, "test", c.svc, Options{RateBurst: 2, RatePerSec: 1})

	limited := 0
	for i := 0; i < 20; i++ {
		xff := fmt.Sprintf("10.0.0.%d", i)
		rr := c.do(http.MethodPost, "/api/admin/sign_in", map[string]string{
			"email":    "root@example.com",
			"password": "guess",
		}, func(r *http.Request) { r.Header.Set("X-Forwarded-For", xff) })
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	// The bucket refills at one token per second, so allow for slow hashing.
	if limited < 15 {
		t.Fatalf("expected rotating X-Forwarded-For to stay limited, only %d of 20 were", limited)
	}
}

func TestSignInLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	c := newTestAPI(t)
	c.api = New(ReadyProbe{}, "test", c.svc, Options{
		RateBurst:      1,
		RatePerSec:     1,
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")},
	})

	guest := func(client string) int {
		return c.do(http.MethodPost, "/api/player/guest", nil, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", client)
		}).Code
	}
	if code := guest("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client: %d", code)
	}
	if code := guest("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Fatalf("first client again: expected 429, got %d", code)
	}
	if code := guest("203.0.113.2"); code != http.StatusOK {
		t.Fatalf("second client behind the same proxy: %d", code)
	}
}
