package auth

import (
	"strings"
	"time"
)

// Role separates the two identity spaces. Admins and players live in different
// directories, so a subject is only meaningful together with its role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// ParseRole maps a claim value onto a known role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleAdmin:
		return RoleAdmin, true
	case RolePlayer:
		return RolePlayer, true
	default:
		return "", false
	}
}

func (r Role) String() string { return string(r) }

// Record is the credential-relevant part of a user row.
// Email and StoredSecret are empty for guests.
type Record struct {
	ID           string
	Role         Role
	Email        string
	StoredSecret string
	IsGuest      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSecret reports whether the record carries any stored secret at all.
func (r *Record) HasSecret() bool {
	return r != nil && r.StoredSecret != ""
}

// RecordUpdate lists the fields that may be changed in place. Nil fields are left untouched.
type RecordUpdate struct {
	StoredSecret *string
}

// AdminProfile is the public view of an admin returned by "who am I".
type AdminProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// PlayerProfile is the public view of a player. Email is null for guests.
type PlayerProfile struct {
	ID      string  `json:"id"`
	Email   *string `json:"email"`
	IsGuest bool    `json:"is_guest"`
}

// Session is what a successful sign-in or guest provisioning hands back.
type Session struct {
	Subject   string
	Role      Role
	Token     string
	ExpiresAt time.Time
	Lifetime  time.Duration

	// LegacyUpgraded is set when this sign-in replaced a plaintext stored secret.
	LegacyUpgraded bool
}

// ExpiresIn returns the session lifetime in whole seconds.
func (s Session) ExpiresIn() int64 {
	return int64(s.Lifetime / time.Second)
}

func newAdminProfile(rec *Record) *AdminProfile {
	role := rec.Role
	if role == "" {
		role = RoleAdmin
	}
	return &AdminProfile{ID: rec.ID, Email: rec.Email, Role: role}
}

func newPlayerProfile(rec *Record) *PlayerProfile {
	p := &PlayerProfile{ID: rec.ID, IsGuest: rec.IsGuest}
	if rec.Email != "" {
		email := rec.Email
		p.Email = &email
	}
	return p
}
