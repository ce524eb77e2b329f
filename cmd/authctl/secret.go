package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"puzzled.app/internal/auth"
	"puzzled.app/internal/config"
)

func newHashCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "hash <password>",
		Short: "Print the stored form of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations == 0 {
				cfg, err := loadValid(loadConfig)
				if err != nil {
					return err
				}
				iterations = cfg.Iterations
			}
			if iterations < auth.MinIterations {
				return errors.New("iterations below minimum")
			}
			stored, err := auth.NewHasher(iterations).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 0, "PBKDF2 iterations (default from PUZZLED_PBKDF2_ITERATIONS)")
	return cmd
}

type seedAdminConfig struct {
	email    string
	password string
	timeout  time.Duration
}

func newSeedAdminCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	sc := &seedAdminConfig{}
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Insert an admin with a hashed password",
		Long: `Inserts an admin into admin_users using the configured PostgreSQL DSN.
The password is stored as a PBKDF2 hash, never as plaintext.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadValid(loadConfig)
			if err != nil {
				return err
			}
			if cfg.DSN == "" {
				return errors.New("PUZZLED_PG_DSN is required")
			}
			db, err := sql.Open("pgx", cfg.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
			defer cancel()
			id, err := seedAdmin(ctx, auth.NewPGStore(db), auth.NewHasher(cfg.Iterations), sc.email, sc.password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&sc.email, "email", "", "admin email")
	cmd.Flags().StringVar(&sc.password, "password", "", "admin password")
	cmd.Flags().DurationVar(&sc.timeout, "timeout", 10*time.Second, "database timeout")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedAdmin(ctx context.Context, store auth.Store, hasher *auth.Hasher, email, password string) (string, error) {
	creds, err := auth.Credentials{Email: email, Password: password}.Validate()
	if err != nil {
		return "", err
	}
	stored, err := hasher.Hash(creds.Password)
	if err != nil {
		return "", err
	}
	return store.Admins(ctx).Insert(ctx, &auth.Record{
		Email:        creds.Email,
		StoredSecret: stored,
		Role:         auth.RoleAdmin,
	})
}
