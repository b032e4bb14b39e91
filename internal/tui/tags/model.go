package tags

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattsolo1/grove-core/tui/components/help"

	"github.com/mattsolo1/grove-mlconsole/internal/tui/components/confirm"
	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
)

// Service is the part of the console service the editor drives.
type Service interface {
	RefreshTags(ctx context.Context, user, exp string) (*mutation.TagView, error)
	ApplyTagEdits(ctx context.Context, user, exp string) (*mutation.Result, error)
}

type column int

const (
	keyColumn column = iota
	valueColumn
)

type savedMsg struct {
	result *mutation.Result
	err    error
}

type refreshedMsg struct {
	view *mutation.TagView
	err  error
}

// Model is the bubbletea model of the tag editor.
type Model struct {
	ctx  context.Context
	svc  Service
	user string
	view *mutation.TagView

	cursor  int
	column  column
	input   textinput.Model
	typing  bool
	keys    KeyMap
	help    help.Model
	confirm confirm.Model
	width   int
	height  int

	saving bool
	status string
	err    error
}

// New creates an editor over an open tag view. Saves and new rows are attributed to user.
func New(ctx context.Context, svc Service, user string, view *mutation.TagView) Model {
	helpModel := help.NewBuilder().
		WithKeys(keys).
		WithTitle("Tag Editor - Help").
		Build()

	ti := textinput.New()
	ti.CharLimit = 250

	return Model{
		ctx:     ctx,
		svc:     svc,
		user:    user,
		view:    view,
		input:   ti,
		keys:    keys,
		help:    helpModel,
		confirm: confirm.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Tags returns the view the editor operates on.
func (m Model) Tags() *mutation.TagView {
	return m.view
}

// Err returns the last error shown in the status line.
func (m Model) Err() error {
	return m.err
}

// rows returns the edit buffer during an edit and the committed rows otherwise.
func (m Model) rows() ([]models.Tag, []int, bool) {
	snap := m.view.Snapshot()
	if snap.Editing {
		return snap.Buffer, snap.Selected, true
	}
	return snap.Tags, nil, false
}

func (m *Model) clampCursor() {
	rows, _, _ := m.rows()
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) saveCmd() tea.Cmd {
	ctx, svc, user, exp := m.ctx, m.svc, m.user, m.view.Owner()
	return func() tea.Msg {
		res, err := svc.ApplyTagEdits(ctx, user, exp)
		return savedMsg{result: res, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, svc, user, exp := m.ctx, m.svc, m.user, m.view.Owner()
	return func() tea.Msg {
		v, err := svc.RefreshTags(ctx, user, exp)
		return refreshedMsg{view: v, err: err}
	}
}
