package artifacts

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattsolo1/grove-core/tui/components/help"

	"github.com/mattsolo1/grove-mlconsole/internal/tui/components/confirm"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// Service is the part of the console service the browser drives.
type Service interface {
	RefreshArtifacts(ctx context.Context, user, run string) (*mutation.ArtifactView, error)
	DeleteSelectedArtifacts(ctx context.Context, user, run string) (*mutation.Result, error)
}

type refreshedMsg struct {
	view *mutation.ArtifactView
	err  error
}

type deletedMsg struct {
	result *mutation.Result
	err    error
}

// displayRow is one visible line of the tree.
type displayRow struct {
	node  *tree.Node
	depth int
}

// Model is the bubbletea model of the artifact browser.
type Model struct {
	ctx  context.Context
	svc  Service
	user string
	view *mutation.ArtifactView

	rows         []displayRow
	cursor       int
	scrollOffset int
	keys         KeyMap
	help         help.Model
	confirm      confirm.Model
	width        int
	height       int

	deleting bool
	status   string
	err      error
}

// New creates a browser over an open view. Deletions run as user.
func New(ctx context.Context, svc Service, user string, view *mutation.ArtifactView) Model {
	helpModel := help.NewBuilder().
		WithKeys(keys).
		WithTitle("Artifact Browser - Help").
		Build()

	m := Model{
		ctx:     ctx,
		svc:     svc,
		user:    user,
		view:    view,
		keys:    keys,
		help:    helpModel,
		confirm: confirm.New(),
	}
	m.rebuild()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Artifacts returns the view the browser operates on.
func (m Model) Artifacts() *mutation.ArtifactView {
	return m.view
}

// Err returns the last error shown in the status line.
func (m Model) Err() error {
	return m.err
}

// rebuild flattens the expanded part of the tree into display rows and clamps the cursor.
func (m *Model) rebuild() {
	snap := m.view.Snapshot()
	expanded := make(map[string]bool, len(snap.Expanded))
	for _, id := range snap.Expanded {
		expanded[id] = true
	}

	m.rows = nil
	var walk func(nodes []*tree.Node, depth int)
	walk = func(nodes []*tree.Node, depth int) {
		for _, n := range nodes {
			m.rows = append(m.rows, displayRow{node: n, depth: depth})
			if n.IsDir() && expanded[n.ID] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(snap.Roots, 0)

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.adjustScroll()
}

func (m Model) current() *tree.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].node
}

func (m Model) getViewportHeight() int {
	// Header, spacing, status line and footer.
	h := m.height - 7
	if h < 1 {
		return 20
	}
	return h
}

func (m *Model) adjustScroll() {
	vh := m.getViewportHeight()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+vh {
		m.scrollOffset = m.cursor - vh + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, svc, user, run := m.ctx, m.svc, m.user, m.view.Owner()
	return func() tea.Msg {
		v, err := svc.RefreshArtifacts(ctx, user, run)
		return refreshedMsg{view: v, err: err}
	}
}

func (m Model) deleteCmd() tea.Cmd {
	ctx, svc, user, run := m.ctx, m.svc, m.user, m.view.Owner()
	return func() tea.Msg {
		res, err := svc.DeleteSelectedArtifacts(ctx, user, run)
		return deletedMsg{result: res, err: err}
	}
}
