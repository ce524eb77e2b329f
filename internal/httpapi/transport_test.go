package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSetSessionCookieAttributes(t *testing.T) {
	rr := httptest.NewRecorder()
	setSessionCookie(rr, "tok", time.Hour)

	header := rr.Header().Get("Set-Cookie")
	for _, want := range []string{"admin_session=tok", "Path=/", "Max-Age=3600", "HttpOnly", "Secure", "SameSite=Lax"} {
		if !strings.Contains(header, want) {
			t.Fatalf("Set-Cookie %q missing %q", header, want)
		}
	}
}

func TestClearSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	clearSessionCookie(rr)

	header := rr.Header().Get("Set-Cookie")
	if !strings.HasPrefix(header, "admin_session=;") {
		t.Fatalf("expected empty cookie value, got %q", header)
	}
	if !strings.Contains(header, "Max-Age=0") {
		t.Fatalf("expected Max-Age=0, got %q", header)
	}
}

func TestReadSessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := readSessionCookie(req); ok {
		t.Fatalf("expected no token without cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "a.b%2Ec"})
	token, ok := readSessionCookie(req)
	if !ok || token != "a.b.c" {
		t.Fatalf("expected decoded token, got %q ok=%v", token, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: ""})
	if _, ok := readSessionCookie(req); ok {
		t.Fatalf("expected empty cookie to be absent")
	}
}

func TestReadBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"", "", false},
		{"bearer abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Bearer  abc", "", false},
		{"Bearer abc def", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		token, ok := readBearerToken(req)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("header %q: got (%q, %v), want (%q, %v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}
