package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	dryRun   bool
	verbose  int
	silent   bool
	path     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "relrun",
		Short:         "relrun runs an automated release pipeline from a releaserc.toml",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.dryRun, "dry", "d", false, "leave wet steps out of the plan and log them as skipped")
	cmd.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")
	cmd.PersistentFlags().BoolVarP(&flags.silent, "silent", "s", false, "suppress all logging")
	cmd.PersistentFlags().StringVarP(&flags.path, "path", "p", ".", "directory containing releaserc.toml")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))

	return cmd
}

// logLevel maps the verbosity/silent flags to an internal/rtlog level
// string, matching the teacher's convention of one -v step per log level.
func (f *rootFlags) logLevel() string {
	switch {
	case f.silent:
		return "silent"
	case f.verbose >= 3:
		return "trace"
	case f.verbose == 2:
		return "debug"
	case f.verbose == 1:
		return "info"
	default:
		return "warn"
	}
}

func (f *rootFlags) configPath() string {
	return filepath.Join(f.path, "releaserc.toml")
}
