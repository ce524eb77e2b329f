package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"puzzled.app/internal/config"
)

func main() {
	if err := NewRootCmd(config.Load).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the operator CLI. loadConfig is swapped in tests.
func NewRootCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Operate on puzzled credentials and session tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newHashCmd(loadConfig))
	cmd.AddCommand(newSeedAdminCmd(loadConfig))
	cmd.AddCommand(newIssueTokenCmd(loadConfig))
	cmd.AddCommand(newInspectTokenCmd(loadConfig))

	return cmd
}

func loadValid(loadConfig func() (config.Config, error)) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
