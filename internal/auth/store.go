package auth

import "context"

// Store gives access to the two disjoint identity directories.
type Store interface {
	Admins(ctx context.Context) Directory
	Players(ctx context.Context) Directory
}

// Directory is the user-record capability the auth flows depend on.
// Lookups return ErrNotFound when no record matches; Insert returns
// ErrConflict when the email is already taken.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	Insert(ctx context.Context, rec *Record) (string, error)
	Update(ctx context.Context, id string, fields RecordUpdate) error
}
