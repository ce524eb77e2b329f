package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"puzzled.app/internal/auth"
	"puzzled.app/internal/obs"
)

const serviceName = "puzzled-api"

// ReadyProbe checks readiness, e.g. a database ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the HTTP layer.
type Options struct {
	AllowedOrigins    []string
	// AllowLocalOrigins admits http://localhost and 127.0.0.1 origins for CORS.
	AllowLocalOrigins bool
	RateBurst         int
	RatePerSec        int
	// TrustedProxies are peers whose X-Forwarded-For is used for rate limiting.
	TrustedProxies    []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	auth       *auth.Service
	origins    []string
	allowLocal bool
	limiter    *rateLimiter
}

// New registers the auth, health and metrics routes.
func New(rp ReadyProbe, version string, svc *auth.Service, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		auth:       svc,
		origins:    opts.AllowedOrigins,
		allowLocal: opts.AllowLocalOrigins,
		limiter:    newRateLimiter(opts.RateBurst, opts.RatePerSec, opts.TrustedProxies),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.Handle("/api/admin/sign_in", a.limiter.wrap(http.HandlerFunc(a.handleAdminSignIn)))
	a.mux.HandleFunc("/api/admin/sign_out", a.handleAdminSignOut)
	a.mux.HandleFunc("/api/admin/me", a.handleAdminMe)

	a.mux.Handle("/api/player/sign_up", a.limiter.wrap(http.HandlerFunc(a.handlePlayerSignUp)))
	a.mux.Handle("/api/player/sign_in", a.limiter.wrap(http.HandlerFunc(a.handlePlayerSignIn)))
	a.mux.Handle("/api/player/guest", a.limiter.wrap(http.HandlerFunc(a.handlePlayerGuest)))
	a.mux.HandleFunc("/api/player/me", a.handlePlayerMe)

	a.mux.Handle("/api/v1/players/sign_up", a.limiter.wrap(http.HandlerFunc(a.handlePlayerSignUp)))
	a.mux.Handle("/api/v1/players/sign_in", a.limiter.wrap(http.HandlerFunc(a.handlePlayerSignIn)))
	a.mux.Handle("/api/v1/players/guest/sign_up", a.limiter.wrap(http.HandlerFunc(a.handlePlayerGuest)))
	a.mux.HandleFunc("/api/v1/players/profile", a.handlePlayerMe)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return a
}

// HandleAdmin mounts h behind the admin gate.
func (a *API) HandleAdmin(pattern string, h http.Handler) {
	a.mux.Handle(pattern, a.RequireAdmin(h))
}

// HandlePlayer mounts h behind the player gate.
func (a *API) HandlePlayer(pattern string, h http.Handler) {
	a.mux.Handle(pattern, a.RequirePlayer(h))
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.origins, a.allowLocal)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeJSON reads a single JSON value. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 64<<10)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
