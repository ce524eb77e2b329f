package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"puzzled.app/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps both directories in process memory.
// It backs development runs without a database and the tests.
type MemoryStore struct {
	admins  *MemoryDirectory
	players *MemoryDirectory
}

// NewMemoryStore creates empty admin and player directories.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		admins:  NewMemoryDirectory(RoleAdmin),
		players: NewMemoryDirectory(RolePlayer),
	}
}

func (s *MemoryStore) Admins(context.Context) Directory  { return s.admins }
func (s *MemoryStore) Players(context.Context) Directory { return s.players }

// MemoryDirectory implements Directory with in-process concurrency safety.
type MemoryDirectory struct {
	role Role

	mu      sync.RWMutex
	byID    map[string]*Record
	byEmail map[string]string
}

// NewMemoryDirectory creates an empty directory for role.
func NewMemoryDirectory(role Role) *MemoryDirectory {
	return &MemoryDirectory{
		role:    role,
		byID:    make(map[string]*Record),
		byEmail: make(map[string]string),
	}
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (*Record, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	rec := *d.byID[id]
	return &rec, nil
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (d *MemoryDirectory) Insert(_ context.Context, rec *Record) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	email := normalizeEmail(rec.Email)
	if email != "" {
		if _, taken := d.byEmail[email]; taken {
			return "", ErrConflict
		}
	}
	stored := *rec
	if stored.ID == "" {
		stored.ID = ids.New()
	}
	if _, taken := d.byID[stored.ID]; taken {
		return "", ErrConflict
	}
	stored.Email = email
	stored.Role = d.role
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	d.byID[stored.ID] = &stored
	if email != "" {
		d.byEmail[email] = stored.ID
	}
	rec.ID = stored.ID
	return stored.ID, nil
}

func (d *MemoryDirectory) Update(_ context.Context, id string, fields RecordUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return ErrNotFound
	}
	if fields.StoredSecret != nil {
		rec.StoredSecret = *fields.StoredSecret
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}
