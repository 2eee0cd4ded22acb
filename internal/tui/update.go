package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/relrun/relrun/internal/kernel"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ActionProgressMsg:
		if msg.Index < 0 || msg.Index >= len(m.status) {
			return m, nil
		}
		switch msg.Phase {
		case kernel.ProgressStarted:
			m.status[msg.Index] = RowRunning
		case kernel.ProgressFinished:
			if msg.Err != nil {
				m.status[msg.Index] = RowFailed
				m.errs[msg.Index] = msg.Err
				m.finished = true
			} else {
				m.status[msg.Index] = RowDone
			}
			m.completed++
			m.markFinishedIfComplete()
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
		if msg.String() == "q" {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
		return m, nil
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
