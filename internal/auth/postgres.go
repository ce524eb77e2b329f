package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"puzzled.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	admins  *pgDirectory
	players *pgDirectory
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{
		admins:  &pgDirectory{db: db, table: adminTable},
		players: &pgDirectory{db: db, table: playerTable},
	}
}

func (s *PGStore) Admins(context.Context) Directory  { return s.admins }
func (s *PGStore) Players(context.Context) Directory { return s.players }

// pgTable captures the column differences between admin_users and player_users.
type pgTable struct {
	name   string
	role   Role
	selcol string
	insert string
}

var (
	adminTable = pgTable{
		name:   "admin_users",
		role:   RoleAdmin,
		selcol: `id, email, password_hash, role, false, created_at, updated_at`,
		insert: `insert into admin_users(id, email, password_hash, role, created_at, updated_at)
			 values($1,$2,$3,$4,$5,$5)`,
	}
	playerTable = pgTable{
		name:   "player_users",
		role:   RolePlayer,
		selcol: `id, email, password_hash, 'player', is_guest, created_at, updated_at`,
		insert: `insert into player_users(id, email, password_hash, is_guest, created_at, updated_at)
			 values($1,$2,$3,$4,$5,$5)`,
	}
)

type pgDirectory struct {
	db    *sql.DB
	table pgTable
}

func (d *pgDirectory) FindByEmail(ctx context.Context, email string) (*Record, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	row := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from %s where email=$1`, d.table.selcol, d.table.name), email)
	return scanRecord(row)
}

func (d *pgDirectory) FindByID(ctx context.Context, id string) (*Record, error) {
	id = strings.TrimSpace(id)
	if !ids.Valid(id) {
		return nil, ErrNotFound
	}
	row := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from %s where id=$1`, d.table.selcol, d.table.name), id)
	return scanRecord(row)
}

func (d *pgDirectory) Insert(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	rec.Email = normalizeEmail(rec.Email)
	rec.Role = d.table.role
	now := time.Now().UTC()

	var err error
	switch d.table.role {
	case RoleAdmin:
		_, err = d.db.ExecContext(ctx, d.table.insert,
			rec.ID, rec.Email, rec.StoredSecret, string(rec.Role), now)
	default:
		_, err = d.db.ExecContext(ctx, d.table.insert,
			rec.ID, nullString(rec.Email), nullString(rec.StoredSecret), rec.IsGuest, now)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("insert %s: %w", d.table.name, err)
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	return rec.ID, nil
}

func (d *pgDirectory) Update(ctx context.Context, id string, fields RecordUpdate) error {
	if fields.StoredSecret == nil {
		return nil
	}
	res, err := d.db.ExecContext(ctx,
		fmt.Sprintf(`update %s set password_hash=$2, updated_at=$3 where id=$1`, d.table.name),
		id, nullString(*fields.StoredSecret), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update %s: %w", d.table.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec    Record
		email  sql.NullString
		secret sql.NullString
		role   string
	)
	if err := row.Scan(&rec.ID, &email, &secret, &role, &rec.IsGuest, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Email = email.String
	rec.StoredSecret = secret.String
	rec.Role = Role(role)
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
