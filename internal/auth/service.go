package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"puzzled.app/internal/obs"
)

// Credentials is the email/password pair submitted to sign-in and sign-up.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalizes the email and rejects malformed input with ErrInvalidPayload.
func (c Credentials) Validate() (Credentials, error) {
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return Credentials{}, ErrInvalidPayload
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return Credentials{}, ErrInvalidPayload
	}
	return Credentials{Email: email, Password: c.Password}, nil
}

// Service orchestrates the sign-in, sign-up, guest and "who am I" flows.
// It keeps no mutable state between calls.
type Service struct {
	store  Store
	hasher *Hasher
	tokens *TokenService
}

// NewService wires the flows to a directory store, a hasher and a token service.
func NewService(store Store, hasher *Hasher, tokens *TokenService) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, ErrSigningKeyMissing
	}
	if hasher == nil {
		hasher = NewHasher(DefaultIterations)
	}
	return &Service{store: store, hasher: hasher, tokens: tokens}, nil
}

// Tokens exposes the token service used by the flows.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Hasher exposes the credential hasher used by the flows.
func (s *Service) Hasher() *Hasher { return s.hasher }

// AdminSignIn checks admin credentials and issues an admin session. A record
// still holding its plaintext password is accepted once and upgraded in place.
func (s *Service) AdminSignIn(ctx context.Context, creds Credentials) (Session, error) {
	creds, err := creds.Validate()
	if err != nil {
		obs.AuthAttempt("admin_sign_in", "invalid_payload")
		return Session{}, err
	}
	dir := s.store.Admins(ctx)
	rec, err := dir.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.AuthAttempt("admin_sign_in", "rejected")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find admin: %w", err)
	}
	ok, upgraded, err := s.checkSecret(ctx, dir, rec, creds.Password, true)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		obs.AuthAttempt("admin_sign_in", "rejected")
		return Session{}, ErrInvalidCredentials
	}
	sess, err := s.issue(rec.ID, RoleAdmin)
	if err != nil {
		return Session{}, err
	}
	sess.LegacyUpgraded = upgraded
	obs.AuthAttempt("admin_sign_in", "ok")
	return sess, nil
}

// AdminProfile resolves the admin behind a session token. Missing, invalid or
// non-admin tokens and unknown subjects yield a nil profile and no error.
func (s *Service) AdminProfile(ctx context.Context, token string) (*AdminProfile, error) {
	claims, err := s.Authenticate(token, RoleAdmin)
	if err != nil {
		return nil, nil
	}
	rec, err := s.store.Admins(ctx).FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return newAdminProfile(rec), nil
}

// PlayerSignUp registers a player with a hashed password and returns its id.
func (s *Service) PlayerSignUp(ctx context.Context, creds Credentials) (string, error) {
	creds, err := creds.Validate()
	if err != nil {
		obs.AuthAttempt("player_sign_up", "invalid_payload")
		return "", err
	}
	dir := s.store.Players(ctx)
	if _, err := dir.FindByEmail(ctx, creds.Email); err == nil {
		obs.AuthAttempt("player_sign_up", "conflict")
		return "", ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("find player: %w", err)
	}
	hashed, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return "", err
	}
	id, err := dir.Insert(ctx, &Record{Email: creds.Email, StoredSecret: hashed})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			obs.AuthAttempt("player_sign_up", "conflict")
			return "", ErrConflict
		}
		return "", fmt.Errorf("insert player: %w", err)
	}
	obs.AuthAttempt("player_sign_up", "ok")
	return id, nil
}

// PlayerSignIn checks player credentials and issues a bearer session.
func (s *Service) PlayerSignIn(ctx context.Context, creds Credentials) (Session, error) {
	creds, err := creds.Validate()
	if err != nil {
		obs.AuthAttempt("player_sign_in", "invalid_payload")
		return Session{}, err
	}
	dir := s.store.Players(ctx)
	rec, err := dir.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.AuthAttempt("player_sign_in", "rejected")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find player: %w", err)
	}
	ok, _, err := s.checkSecret(ctx, dir, rec, creds.Password, false)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		obs.AuthAttempt("player_sign_in", "rejected")
		return Session{}, ErrInvalidCredentials
	}
	sess, err := s.issue(rec.ID, RolePlayer)
	if err != nil {
		return Session{}, err
	}
	obs.AuthAttempt("player_sign_in", "ok")
	return sess, nil
}

// ProvisionGuest creates a credential-less player and issues it a session.
func (s *Service) ProvisionGuest(ctx context.Context) (Session, error) {
	id, err := s.store.Players(ctx).Insert(ctx, &Record{IsGuest: true})
	if err != nil {
		return Session{}, fmt.Errorf("insert guest: %w", err)
	}
	sess, err := s.issue(id, RolePlayer)
	if err != nil {
		return Session{}, err
	}
	obs.AuthAttempt("player_guest", "ok")
	return sess, nil
}

// PlayerProfile resolves the player behind a bearer token, nil when there is none.
func (s *Service) PlayerProfile(ctx context.Context, token string) (*PlayerProfile, error) {
	claims, err := s.Authenticate(token, "")
	if err != nil {
		return nil, nil
	}
	rec, err := s.store.Players(ctx).FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find player: %w", err)
	}
	return newPlayerProfile(rec), nil
}

// Authenticate verifies token and, when required is set, its role claim.
// Every failure is reported as ErrUnauthorized.
func (s *Service) Authenticate(token string, required Role) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if required != "" && claims.Role != required {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *Service) issue(subject string, role Role) (Session, error) {
	lifetime := s.tokens.Lifetime()
	token, exp, err := s.tokens.Issue(subject, role, lifetime)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Subject:   subject,
		Role:      role,
		Token:     token,
		ExpiresAt: exp,
		Lifetime:  lifetime,
	}, nil
}

// checkSecret verifies password against rec. With allowLegacy a plaintext
// stored value that equals password is accepted and replaced by a hash before
// returning, and upgraded is true. Two concurrent sign-ins may both upgrade the same record; either
// write leaves a valid hash of the same password.
func (s *Service) checkSecret(ctx context.Context, dir Directory, rec *Record, password string, allowLegacy bool) (ok, upgraded bool, err error) {
	if !rec.HasSecret() {
		return false, false, nil
	}
	if s.hasher.Verify(password, rec.StoredSecret) {
		if s.hasher.NeedsRehash(rec.StoredSecret) {
			if err := s.replaceSecret(ctx, dir, rec, password); err != nil {
				obs.Log("warn", "secret_rehash_failed", map[string]any{
					"subject": rec.ID,
					"role":    string(rec.Role),
					"error":   err.Error(),
				})
			} else {
				obs.SecretUpgraded("iterations")
			}
		}
		return true, false, nil
	}
	if !allowLegacy || !ParseStoredSecret(rec.StoredSecret).MatchesLegacy(password) {
		return false, false, nil
	}
	if err := s.replaceSecret(ctx, dir, rec, password); err != nil {
		return false, false, fmt.Errorf("upgrade legacy secret: %w", err)
	}
	obs.SecretUpgraded("legacy")
	obs.Log("info", "legacy_secret_upgraded", map[string]any{
		"subject": rec.ID,
		"role":    string(rec.Role),
	})
	return true, true, nil
}

func (s *Service) replaceSecret(ctx context.Context, dir Directory, rec *Record, password string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := dir.Update(ctx, rec.ID, RecordUpdate{StoredSecret: &hashed}); err != nil {
		return err
	}
	rec.StoredSecret = hashed
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
