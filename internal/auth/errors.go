package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrInvalidPayload     = errors.New("auth: invalid payload")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUnauthorized       = errors.New("auth: unauthorized")
)

// Token verification failures. The access gates collapse all of them into
// ErrUnauthorized before anything reaches the client.
var (
	ErrMalformedToken    = errors.New("auth: malformed token")
	ErrInvalidSignature  = errors.New("auth: invalid token signature")
	ErrTokenExpired      = errors.New("auth: token expired")
	ErrSigningKeyMissing = errors.New("auth: signing key is not configured")
)
