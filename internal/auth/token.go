package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenLifetime bounds how long a leaked token stays usable.
const DefaultTokenLifetime = time.Hour

// Claims is the payload of every session token.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens with a single key.
type TokenService struct {
	key      []byte
	lifetime time.Duration
	now      func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenLifetime overrides the default lifetime used by Issue callers.
func WithTokenLifetime(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService fails closed: an empty key is a configuration error.
func NewTokenService(key string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrSigningKeyMissing
	}
	s := &TokenService{
		key:      []byte(key),
		lifetime: DefaultTokenLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lifetime returns the configured session lifetime.
func (s *TokenService) Lifetime() time.Duration { return s.lifetime }

// Issue signs a token for subject with the given role. A non-positive lifetime
// falls back to the configured one.
func (s *TokenService) Issue(subject string, role Role, lifetime time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if _, ok := ParseRole(string(role)); !ok {
		return "", time.Time{}, fmt.Errorf("auth: unknown role %q", role)
	}
	if lifetime <= 0 {
		lifetime = s.lifetime
	}

	now := s.now().UTC().Truncate(time.Second)
	exp := now.Add(lifetime)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Errors are ErrMalformedToken, ErrInvalidSignature or ErrTokenExpired.
func (s *TokenService) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// exp has second resolution; a token is valid through its expiry second.
		jwt.WithTimeFunc(func() time.Time { return s.now().Truncate(time.Second) }),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return nil, ErrMalformedToken
	}
	role, ok := ParseRole(string(claims.Role))
	if !ok {
		return nil, ErrMalformedToken
	}
	claims.Role = role
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformedToken
	}
}
