package tags

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-mlconsole/internal/tui/components/confirm"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		return m, nil

	case savedMsg:
		m.saving = false
		var emptyKey *selection.EmptyKeyError
		switch {
		case errors.As(msg.err, &emptyKey):
			// The buffer is kept, so point at the row that needs a key.
			m.cursor, m.column = emptyKey.Index, keyColumn
			m.setErr(msg.err)
		case errors.Is(msg.err, mutation.ErrStaleResult):
			m.setStatus("Tags changed while saving; result discarded")
		case msg.err != nil:
			m.setErr(msg.err)
		default:
			m.setStatus(fmt.Sprintf("Saved %d tags", len(msg.result.Rows)))
		}
		m.clampCursor()
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.setErr(msg.err)
			return m, nil
		}
		m.view = msg.view
		m.setStatus("Reloaded")
		m.clampCursor()
		return m, nil

	case confirm.ConfirmedMsg:
		if err := m.view.CancelEdit(); err != nil {
			m.setErr(err)
			return m, nil
		}
		m.setStatus("Changes discarded")
		m.clampCursor()
		if msg.Action == confirm.ActionDiscardAndQuit {
			return m, tea.Quit
		}
		return m, nil

	case confirm.CancelledMsg:
		return m, nil

	case tea.KeyMsg:
		if m.confirm.Active() {
			var cmd tea.Cmd
			m.confirm, cmd = m.confirm.Update(msg)
			return m, cmd
		}
		if m.typing {
			return m.handleInput(msg)
		}
		if m.help.ShowAll {
			m.help.Toggle()
			return m, nil
		}
		return m.handleKey(msg)
	}

	if m.typing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := m.input.Value()
		cursor, col := m.cursor, m.column
		err := m.view.Edit(func(rows *selection.Rows) error {
			current := rows.Rows()
			if cursor >= len(current) {
				return fmt.Errorf("row %d no longer exists", cursor)
			}
			row := current[cursor]
			if col == keyColumn {
				rows.UpdateRow(cursor, value, row.Value)
			} else {
				rows.UpdateRow(cursor, row.Key, value)
			}
			return nil
		})
		m.stopTyping()
		if err != nil {
			m.setErr(err)
		}
		return m, nil
	case tea.KeyEsc:
		m.stopTyping()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	buffer, _, editing := m.rows()

	switch {
	case key.Matches(msg, m.keys.Quit):
		if editing && !m.saving {
			m.confirm.AskDiscard(len(buffer), true)
			return m, nil
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
	case key.Matches(msg, m.keys.Edit):
		if editing {
			break
		}
		if err := m.view.BeginEdit(); err != nil {
			m.setErr(err)
			break
		}
		m.setStatus("Editing")
	case key.Matches(msg, m.keys.EditCell):
		if !m.ensureEditing(editing) {
			break
		}
		rows, _, _ := m.rows()
		if m.cursor >= len(rows) {
			break
		}
		value := rows[m.cursor].Key
		if m.column == valueColumn {
			value = rows[m.cursor].Value
		}
		return m, m.startTyping(value)
	case key.Matches(msg, m.keys.SwitchColumn):
		m.column = 1 - m.column
	case key.Matches(msg, m.keys.Insert):
		if !m.ensureEditing(editing) {
			break
		}
		var index int
		if m.edit(func(rows *selection.Rows) error {
			index = rows.InsertRow(m.user)
			return nil
		}) {
			m.cursor, m.column = index, keyColumn
			return m, m.startTyping("")
		}
	case key.Matches(msg, m.keys.DeleteRow):
		cursor := m.cursor
		if m.edit(func(rows *selection.Rows) error {
			rows.DeleteRow(cursor)
			return nil
		}) {
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Toggle):
		cursor := m.cursor
		m.edit(func(rows *selection.Rows) error {
			rows.ToggleRow(cursor, !rows.IsSelected(cursor))
			return nil
		})
	case key.Matches(msg, m.keys.SelectAll), key.Matches(msg, m.keys.SelectNone):
		all := key.Matches(msg, m.keys.SelectAll)
		m.edit(func(rows *selection.Rows) error {
			rows.SelectAll(all)
			return nil
		})
	case key.Matches(msg, m.keys.DeleteSelected):
		var removed int
		if m.edit(func(rows *selection.Rows) error {
			removed = rows.DeleteSelected()
			if removed == 0 {
				return mutation.ErrNothingSelected
			}
			return nil
		}) {
			m.setStatus(fmt.Sprintf("Removed %d rows", removed))
			m.clampCursor()
		}
	case key.Matches(msg, m.keys.Save):
		if m.saving {
			m.setErr(mutation.ErrOperationInProgress)
			break
		}
		if !editing {
			m.setErr(mutation.ErrNotEditing)
			break
		}
		m.saving = true
		m.setStatus("Saving...")
		return m, m.saveCmd()
	case key.Matches(msg, m.keys.Discard):
		if editing {
			m.confirm.AskDiscard(len(buffer), false)
		}
	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("Reloading...")
		return m, m.refreshCmd()
	}
	return m, nil
}

// ensureEditing opens an edit session when none is open.
func (m *Model) ensureEditing(editing bool) bool {
	if editing {
		return true
	}
	if err := m.view.BeginEdit(); err != nil {
		m.setErr(err)
		return false
	}
	return true
}

// edit runs fn on the buffer and reports success. Failures go to the status line.
func (m *Model) edit(fn func(rows *selection.Rows) error) bool {
	if err := m.view.Edit(fn); err != nil {
		m.setErr(err)
		return false
	}
	m.setStatus("")
	return true
}

func (m *Model) startTyping(value string) tea.Cmd {
	m.typing = true
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) stopTyping() {
	m.typing = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.err = nil
}

func (m *Model) setErr(err error) {
	m.status = ""
	m.err = err
}
