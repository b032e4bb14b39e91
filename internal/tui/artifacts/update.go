package artifacts

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-mlconsole/internal/tui/components/confirm"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		m.adjustScroll()
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.setErr(msg.err)
			return m, nil
		}
		m.view = msg.view
		m.setStatus("Reloaded from store")
		m.rebuild()
		return m, nil

	case deletedMsg:
		m.deleting = false
		switch {
		case errors.Is(msg.err, mutation.ErrStaleResult):
			m.setStatus("The listing changed while deleting; result discarded")
		case msg.err != nil:
			m.setErr(msg.err)
		default:
			m.setStatus(fmt.Sprintf("Deleted %d items", msg.result.Removed))
		}
		m.rebuild()
		return m, nil

	case confirm.ConfirmedMsg:
		if msg.Action != confirm.ActionDelete {
			return m, nil
		}
		m.deleting = true
		m.setStatus("Deleting...")
		return m, m.deleteCmd()

	case confirm.CancelledMsg:
		m.setStatus("Cancelled")
		return m, nil

	case tea.KeyMsg:
		if m.confirm.Active() {
			var cmd tea.Cmd
			m.confirm, cmd = m.confirm.Update(msg)
			return m, cmd
		}
		if m.help.ShowAll {
			m.help.Toggle()
			return m, nil
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.adjustScroll()
		}
	case key.Matches(msg, m.keys.GoToTop):
		m.cursor = 0
		m.adjustScroll()
	case key.Matches(msg, m.keys.GoToBottom):
		m.cursor = len(m.rows) - 1
		m.rebuild()
	case key.Matches(msg, m.keys.Fold):
		if n := m.current(); n != nil && n.IsDir() {
			m.view.ToggleExpand(n.ID)
			m.rebuild()
		}
	case key.Matches(msg, m.keys.Toggle), key.Matches(msg, m.keys.ToggleOne):
		n := m.current()
		if n == nil {
			break
		}
		cascade := key.Matches(msg, m.keys.Toggle)
		if err := m.view.SetSelected(n.ID, !m.isSelected(n.ID), cascade); err != nil {
			m.setErr(err)
			break
		}
		m.setStatus("")
	case key.Matches(msg, m.keys.SelectAll), key.Matches(msg, m.keys.SelectNone):
		if err := m.view.SelectAll(key.Matches(msg, m.keys.SelectAll)); err != nil {
			m.setErr(err)
			break
		}
		m.setStatus("")
	case key.Matches(msg, m.keys.Delete):
		if m.deleting {
			m.setErr(mutation.ErrOperationInProgress)
			break
		}
		summary := m.view.Summary()
		if summary.Total() == 0 {
			m.setStatus("Nothing selected")
			break
		}
		m.confirm.AskDelete(summary)
	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("Reloading...")
		return m, m.refreshCmd()
	}
	return m, nil
}

func (m Model) isSelected(id string) bool {
	for _, s := range m.view.Snapshot().Selected {
		if s == id {
			return true
		}
	}
	return false
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.err = nil
}

func (m *Model) setErr(err error) {
	m.status = ""
	m.err = err
}
