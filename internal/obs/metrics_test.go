package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/api/admin/me":                    "/api/admin/me",
		"/api/admin/me/":                   "/api/admin/me",
		"/api/player/sign_in?x=1":          "/api/player/sign_in",
		"/api/v1/players/guest/sign_up":    "/api/v1/players/guest/sign_up",
		"/api/puzzles/01J8ZQ4Y7KXRYQ3T3E6": "other",
		"/wp-login.php":                    "other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "418"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "418"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestAuthAttemptCounter(t *testing.T) {
	before := testutil.ToFloat64(authAttempts.WithLabelValues("admin_sign_in", "ok"))
	AuthAttempt("admin_sign_in", "ok")
	if got := testutil.ToFloat64(authAttempts.WithLabelValues("admin_sign_in", "ok")); got-before != 1 {
		t.Fatalf("expected one more attempt, got %v", got-before)
	}
}

func TestLogKeepsEnvelopeKeys(t *testing.T) {
	logger := Logger()
	orig := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(orig)

	Log("warn", "something_happened", map[string]any{"msg": "override", "subject": "abc"})

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	if entry["msg"] != "something_happened" || entry["level"] != "warn" {
		t.Fatalf("unexpected envelope: %v", entry)
	}
	if entry["subject"] != "abc" {
		t.Fatalf("field missing: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("ts missing: %v", entry)
	}
}
