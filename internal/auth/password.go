package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Scheme = "pbkdf2"

	DefaultIterations = 100_000
	MinIterations     = 1_000

	// Stored values claiming more rounds than this are treated as unrecognized.
	maxIterations = 10_000_000

	saltLen   = 16
	keyLen    = 32
	maxKeyLen = 64
)

// SecretFormat tags how a stored secret must be interpreted.
type SecretFormat int

const (
	SecretUnrecognized SecretFormat = iota
	SecretLegacy
	SecretPBKDF2
)

func (f SecretFormat) String() string {
	switch f {
	case SecretLegacy:
		return "legacy"
	case SecretPBKDF2:
		return "pbkdf2"
	default:
		return "unrecognized"
	}
}

// StoredSecret is the parsed form of a password column.
// Only the fields relevant to Format are set.
type StoredSecret struct {
	Format     SecretFormat
	Iterations int
	Salt       []byte
	Key        []byte
	Plain      string
}

// ParseStoredSecret never fails: anything it cannot read is reported as
// SecretUnrecognized, and non-empty values without a scheme are SecretLegacy.
func ParseStoredSecret(stored string) StoredSecret {
	if stored == "" || strings.HasPrefix(stored, "$2") {
		return StoredSecret{Format: SecretUnrecognized}
	}
	if !strings.HasPrefix(stored, pbkdf2Scheme+"$") {
		return StoredSecret{Format: SecretLegacy, Plain: stored}
	}
	parts := strings.Split(stored, "$")
	if len(parts) != 4 {
		return StoredSecret{Format: SecretUnrecognized}
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > maxIterations {
		return StoredSecret{Format: SecretUnrecognized}
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return StoredSecret{Format: SecretUnrecognized}
	}
	key, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 || len(key) > maxKeyLen {
		return StoredSecret{Format: SecretUnrecognized}
	}
	return StoredSecret{Format: SecretPBKDF2, Iterations: iterations, Salt: salt, Key: key}
}

// String renders a PBKDF2 secret in its storage form. Other formats render as empty.
func (s StoredSecret) String() string {
	if s.Format != SecretPBKDF2 {
		return ""
	}
	return fmt.Sprintf("%s$%d$%s$%s",
		pbkdf2Scheme,
		s.Iterations,
		base64.StdEncoding.EncodeToString(s.Salt),
		base64.StdEncoding.EncodeToString(s.Key),
	)
}

// MatchesLegacy compares a plaintext candidate with a legacy stored value.
func (s StoredSecret) MatchesLegacy(plaintext string) bool {
	if s.Format != SecretLegacy {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Plain), []byte(plaintext)) == 1
}

// Hasher hashes and verifies passwords with PBKDF2-HMAC-SHA256.
// It holds only immutable configuration and is safe for concurrent use.
type Hasher struct {
	iterations int
	random     io.Reader
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithEntropy replaces the salt source. Intended for tests.
func WithEntropy(r io.Reader) HasherOption {
	return func(h *Hasher) {
		if r != nil {
			h.random = r
		}
	}
}

// NewHasher returns a hasher that creates new secrets with the given iteration count.
func NewHasher(iterations int, opts ...HasherOption) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	h := &Hasher{iterations: iterations, random: rand.Reader}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Iterations returns the count applied to newly created secrets.
func (h *Hasher) Iterations() int { return h.iterations }

// Hash derives a new stored secret with a fresh random salt.
// An entropy failure is returned as an error and must abort the caller.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("auth: password is empty")
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return "", fmt.Errorf("auth: read salt: %w", err)
	}
	secret := StoredSecret{
		Format:     SecretPBKDF2,
		Iterations: h.iterations,
		Salt:       salt,
		Key:        derive(plaintext, salt, h.iterations, keyLen),
	}
	return secret.String(), nil
}

// Verify reports whether plaintext matches stored. Unrecognized and legacy
// values always yield false; the legacy comparison belongs to the sign-in flow.
func (h *Hasher) Verify(plaintext, stored string) bool {
	secret := ParseStoredSecret(stored)
	if secret.Format != SecretPBKDF2 {
		return false
	}
	candidate := derive(plaintext, secret.Salt, secret.Iterations, len(secret.Key))
	return subtle.ConstantTimeCompare(candidate, secret.Key) == 1
}

// NeedsRehash reports whether a verified PBKDF2 secret was created with fewer
// iterations than the hasher currently uses.
func (h *Hasher) NeedsRehash(stored string) bool {
	secret := ParseStoredSecret(stored)
	return secret.Format == SecretPBKDF2 && secret.Iterations < h.iterations
}

func derive(plaintext string, salt []byte, iterations, size int) []byte {
	return pbkdf2.Key([]byte(plaintext), salt, iterations, size, sha256.New)
}
