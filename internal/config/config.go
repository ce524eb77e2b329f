// Package config loads process configuration from the environment once at
// startup. The resulting Config is passed explicitly to constructors.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"puzzled.app/internal/auth"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DevSigningKey is used only outside production when no key is configured.
	DevSigningKey = "puzzled-development-signing-key"

	// Development admin, matching migrations/seeds. The password is stored as
	// plaintext and upgraded on first sign-in.
	DevAdminEmail    = "admin@puzzled.local"
	DevAdminPassword = "change-me"
)

// Config is the full runtime configuration.
type Config struct {
	Env        string
	SigningKey string
	// KeyFromFallback is true when SigningKey is DevSigningKey because nothing was configured.
	KeyFromFallback bool
	TokenTTL        time.Duration
	Iterations      int

	DSN            string
	HTTPAddr       string
	AllowedOrigins []string
	RateBurst      int
	RatePerSec     int
	// TrustedProxies lists peers whose X-Forwarded-For header is honoured.
	TrustedProxies []netip.Prefix
}

// Production reports whether the process runs with production safeguards.
func (c Config) Production() bool { return c.Env == EnvProduction }

// Load reads PUZZLED_* variables. It does not validate; call Validate.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:        strings.ToLower(strings.TrimSpace(getenv("PUZZLED_ENV"))),
		SigningKey: strings.TrimSpace(getenv("PUZZLED_AUTH_SECRET")),
		TokenTTL:   auth.DefaultTokenLifetime,
		Iterations: auth.DefaultIterations,
		DSN:        strings.TrimSpace(getenv("PUZZLED_PG_DSN")),
		HTTPAddr:   strings.TrimSpace(getenv("PUZZLED_HTTP_ADDR")),
		RateBurst:  20,
		RatePerSec: 5,
	}
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.SigningKey == "" && !cfg.Production() {
		cfg.SigningKey = DevSigningKey
		cfg.KeyFromFallback = true
	}

	if raw := strings.TrimSpace(getenv("PUZZLED_TOKEN_TTL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("PUZZLED_TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	var err error
	if cfg.Iterations, err = intVar(getenv, "PUZZLED_PBKDF2_ITERATIONS", cfg.Iterations); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intVar(getenv, "PUZZLED_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = intVar(getenv, "PUZZLED_RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	for _, origin := range strings.Split(getenv("PUZZLED_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	if cfg.TrustedProxies, err = prefixList(getenv("PUZZLED_TRUSTED_PROXIES")); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would run insecurely or not at all.
func (c Config) Validate() error {
	var errs []error
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("PUZZLED_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.SigningKey == "" {
		errs = append(errs, errors.New("PUZZLED_AUTH_SECRET is required"))
	}
	if c.Production() && (c.KeyFromFallback || c.SigningKey == DevSigningKey) {
		errs = append(errs, errors.New("PUZZLED_AUTH_SECRET must not use the development key in production"))
	}
	if c.Production() && c.DSN == "" {
		errs = append(errs, errors.New("PUZZLED_PG_DSN is required in production"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("PUZZLED_TOKEN_TTL must be positive"))
	}
	if c.Iterations < auth.MinIterations {
		errs = append(errs, fmt.Errorf("PUZZLED_PBKDF2_ITERATIONS must be at least %d", auth.MinIterations))
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	return errors.Join(errs...)
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// prefixList parses a comma list of CIDRs or bare addresses.
func prefixList(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("PUZZLED_TRUSTED_PROXIES: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("PUZZLED_TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
