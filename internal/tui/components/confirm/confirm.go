// Package confirm is the dialog both editors show before deleting artifacts or
// throwing away an edit buffer.
package confirm

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// Action is what the open dialog asks permission for.
type Action int

const (
	ActionNone Action = iota
	ActionDelete
	ActionDiscard
	ActionDiscardAndQuit
)

// ConfirmedMsg reports that the user accepted the dialog for Action.
type ConfirmedMsg struct {
	Action Action
}

// CancelledMsg reports that the user declined the dialog for Action.
type CancelledMsg struct {
	Action Action
}

// maxListed caps how many selected artifacts the delete dialog lists by name.
const maxListed = 8

// Model is the dialog state. The zero Action means no dialog is open.
type Model struct {
	Action Action
	Title  string
	Lines  []string
	keys   keyMap
}

func New() Model {
	return Model{keys: defaultKeyMap}
}

// Active reports whether a dialog is open.
func (m Model) Active() bool {
	return m.Action != ActionNone
}

// AskDelete opens a delete dialog for the selection summarised by s. The title uses
// the same sentence as the CLI prompt; the body lists the first selected paths.
func (m *Model) AskDelete(s selection.Summary) {
	lines := make([]string, 0, maxListed+1)
	for i, n := range s.Nodes {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("... and %d more", len(s.Nodes)-maxListed))
			break
		}
		if n.IsDir() {
			lines = append(lines, n.ID+"/")
		} else {
			lines = append(lines, fmt.Sprintf("%s  %s", n.ID, tree.FormatSize(n.Size)))
		}
	}
	m.Action = ActionDelete
	m.Title = fmt.Sprintf("Delete %s?", s.Describe())
	m.Lines = lines
}

// AskDiscard opens a dialog to drop an edit buffer of the given number of rows.
// With quit the host exits once the buffer is dropped.
func (m *Model) AskDiscard(rows int, quit bool) {
	m.Action = ActionDiscard
	m.Title = "Discard unsaved changes?"
	if quit {
		m.Action = ActionDiscardAndQuit
		m.Title = "Discard unsaved changes and quit?"
	}
	m.Lines = []string{fmt.Sprintf("%d rows in the edit buffer will be lost", rows)}
}

func (m *Model) close() Action {
	action := m.Action
	m.Action, m.Title, m.Lines = ActionNone, "", nil
	return action
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.Active() {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Confirm):
		action := m.close()
		return m, func() tea.Msg { return ConfirmedMsg{Action: action} }
	case key.Matches(keyMsg, m.keys.Cancel):
		action := m.close()
		return m, func() tea.Msg { return CancelledMsg{Action: action} }
	}
	return m, nil
}

func (m Model) View() string {
	if !m.Active() {
		return ""
	}

	border := theme.DefaultTheme.Colors.Orange
	if m.Action == ActionDelete {
		border = theme.DefaultTheme.Colors.Red
	}

	body := []string{lipgloss.NewStyle().Bold(true).Render(m.Title)}
	if len(m.Lines) > 0 {
		body = append(body, "", theme.DefaultTheme.Muted.Render(strings.Join(m.Lines, "\n")))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, body...))

	confirmHelp, cancelHelp := m.keys.Confirm.Help(), m.keys.Cancel.Help()
	hint := lipgloss.NewStyle().
		Faint(true).
		Width(lipgloss.Width(box)).
		Align(lipgloss.Center).
		Render(fmt.Sprintf("%s %s · %s %s", confirmHelp.Key, confirmHelp.Desc, cancelHelp.Key, cancelHelp.Desc))

	return lipgloss.JoinVertical(lipgloss.Left, box, hint)
}

type keyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

var defaultKeyMap = keyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "yes"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "N", "esc", "q"),
		key.WithHelp("n/esc", "no"),
	),
}
