package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/relrun/relrun/internal/config"
	"github.com/relrun/relrun/internal/kernel"
	"github.com/relrun/relrun/internal/planner"
	"github.com/relrun/relrun/internal/rtlog"
	"github.com/relrun/relrun/internal/tui"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the release pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log, err := rtlog.New(rtlog.Options{Writer: cmd.ErrOrStderr(), Level: root.logLevel(), Component: "kernel"})
			if err != nil {
				return err
			}

			cfg, err := config.Load(root.configPath())
			if err != nil {
				return err
			}

			k, err := kernel.Build(ctx, cfg, root.dryRun, kernel.NewHooks(), nil, log)
			if err != nil {
				return err
			}

			interactive := !root.silent && term.IsTerminal(int(os.Stdout.Fd()))
			if !interactive {
				return k.Run(ctx)
			}

			return runInteractive(ctx, k)
		},
	}
}

// runInteractive drives the plan-viewer TUI alongside kernel execution,
// mirroring the teacher's apply.go split between a Bubbletea program
// running in its own goroutine and the use case sending it messages.
func runInteractive(ctx context.Context, k *kernel.Kernel) error {
	model := tui.NewModel(k.Sequence())
	program := tea.NewProgram(model)

	done := make(chan struct{})
	var programErr error
	go func() {
		_, programErr = program.Run()
		close(done)
	}()

	k.OnProgress(func(index int, _ planner.Action, phase kernel.ProgressPhase, err error) {
		program.Send(tui.ActionProgressMsg{Index: index, Phase: phase, Err: err})
	})

	execErr := k.Run(ctx)

	program.Send(tea.QuitMsg{})
	<-done
	if programErr != nil {
		return programErr
	}
	return execErr
}
