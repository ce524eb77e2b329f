package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"puzzled.app/internal/auth"
	"puzzled.app/internal/config"
)

func tokenService(loadConfig func() (config.Config, error)) (*auth.TokenService, error) {
	cfg, err := loadValid(loadConfig)
	if err != nil {
		return nil, err
	}
	return auth.NewTokenService(cfg.SigningKey, auth.WithTokenLifetime(cfg.TokenTTL))
}

func newIssueTokenCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		subject  string
		role     string
		lifetime time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign a session token for a subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := auth.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			svc, err := tokenService(loadConfig)
			if err != nil {
				return err
			}
			token, _, err := svc.Issue(subject, r, lifetime)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject id")
	cmd.Flags().StringVar(&role, "role", string(auth.RolePlayer), "admin or player")
	cmd.Flags().DurationVar(&lifetime, "ttl", 0, "token lifetime (default PUZZLED_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newInspectTokenCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-token <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := tokenService(loadConfig)
			if err != nil {
				return err
			}
			claims, err := svc.Verify(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
