package main

import (
	"context"
	"database/sql"
	"time"

	"puzzled.app/internal/auth"
	"puzzled.app/internal/config"
	"puzzled.app/internal/obs"
)

// openStore returns the Postgres directory when a DSN is configured and the
// in-memory one otherwise. Outside production the in-memory store gets the
// same development admin that migrations/seeds installs.
func openStore(ctx context.Context, cfg config.Config) (auth.Store, *sql.DB, error) {
	if cfg.DSN != "" {
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		return auth.NewPGStore(db), db, nil
	}

	obs.Log("warn", "memory_store", map[string]any{"env": cfg.Env})
	store := auth.NewMemoryStore()
	if cfg.Production() {
		return store, nil, nil
	}
	// Plaintext on purpose: the first sign-in upgrades it, like the SQL seed.
	if _, err := store.Admins(ctx).Insert(ctx, &auth.Record{
		Email:        config.DevAdminEmail,
		StoredSecret: config.DevAdminPassword,
		Role:         auth.RoleAdmin,
	}); err != nil {
		return nil, nil, err
	}
	obs.Log("warn", "dev_admin_seeded", map[string]any{"email": config.DevAdminEmail})
	return store, nil, nil
}
