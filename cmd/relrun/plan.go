package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/discovery"
	"github.com/relrun/relrun/internal/planner"
	"github.com/relrun/relrun/internal/resolver"
	"github.com/relrun/relrun/internal/rtlog"
)

var (
	hookLabel = color.New(color.FgCyan).SprintFunc()
	callLabel = color.New(color.FgGreen).SprintFunc()
)

// colorizeAction highlights hook markers and plugin calls so a long plan is
// easier to scan in a terminal; everything else prints in the default color.
func colorizeAction(a planner.Action) string {
	switch a.Kind {
	case planner.ActionPreStepHook, planner.ActionPostStepHook:
		return hookLabel(a.String())
	case planner.ActionCall:
		return callLabel(a.String())
	default:
		return a.String()
	}
}

func newPlanCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the planned action sequence without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log, err := rtlog.New(rtlog.Options{Writer: cmd.ErrOrStderr(), Level: root.logLevel(), Component: "planner"})
			if err != nil {
				return err
			}

			cfg, err := config.Load(root.configPath())
			if err != nil {
				return err
			}

			raws, err := resolver.ResolveAll(ctx, cfg, log)
			if err != nil {
				return err
			}
			started, err := resolver.StartAll(ctx, raws, log)
			if err != nil {
				return err
			}
			caps, err := discovery.Discover(cfg, started)
			if err != nil {
				return err
			}
			sequence, err := planner.Plan(cfg, caps, started, root.dryRun, log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, action := range sequence {
				fmt.Fprintf(out, "%3d  %s\n", i, colorizeAction(action))
			}
			return nil
		},
	}
}
