// Package tui renders the planned action sequence as a list of every row
// (there is no scrolling) and live-updates each row's status as the kernel
// executes it, grounded on the
// teacher's internal/tui package structure (model.go/update.go/view.go/
// styles.go split, bubbletea.Model over a fixed row set) and adapted from
// its step-result tracking to the kernel's Action rows.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/relrun/relrun/internal/kernel"
	"github.com/relrun/relrun/internal/planner"
)

// RowStatus discriminates the lifecycle of one action's row in the view.
type RowStatus int

const (
	// RowPending means the action has not started yet.
	RowPending RowStatus = iota
	// RowRunning means the action is currently executing.
	RowRunning
	// RowDone means the action finished without error.
	RowDone
	// RowFailed means the action finished with an error.
	RowFailed
)

// ActionProgressMsg reports a kernel.ProgressFunc callback translated into a
// Bubbletea message, mirroring the teacher's StepCompleteMsg pattern.
type ActionProgressMsg struct {
	Index int
	Phase kernel.ProgressPhase
	Err   error
}

// Model is the Bubbletea state for the plan viewer.
type Model struct {
	sequence []planner.Action
	status   []RowStatus
	errs     []error
	total    int
	completed int
	finished bool
	cancelled bool
}

// NewModel constructs a plan-viewer model for the given action sequence.
func NewModel(sequence []planner.Action) Model {
	return Model{
		sequence: sequence,
		status:   make([]RowStatus, len(sequence)),
		errs:     make([]error, len(sequence)),
		total:    len(sequence),
	}
}

// Init starts the Bubbletea program; there is no ticking clock here, unlike
// the teacher's model — rows only change on ActionProgressMsg.
func (m Model) Init() tea.Cmd {
	return nil
}

// TotalActions returns the number of actions in the plan.
func (m Model) TotalActions() int {
	return m.total
}

// CompletedActions reports how many actions have finished (successfully or not).
func (m Model) CompletedActions() int {
	return m.completed
}

// IsFinished reports whether the run has completed (successfully, with an
// early exit, or on first failure).
func (m Model) IsFinished() bool {
	return m.finished
}

func (m *Model) markFinishedIfComplete() {
	if m.total > 0 && m.completed >= m.total {
		m.finished = true
	}
}
