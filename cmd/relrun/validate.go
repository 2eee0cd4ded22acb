package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relrun/relrun/internal/config"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate releaserc.toml without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d plugin(s), %d step override(s)\n",
				root.configPath(), len(cfg.Plugins.Keys()), len(cfg.Steps))
			return nil
		},
	}
}
