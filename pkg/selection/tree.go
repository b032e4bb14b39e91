package selection

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// Tree tracks which nodes of an artifact tree are selected and which directories are expanded.
// It is not safe for concurrent use; the owning view serializes access.
type Tree struct {
	roots    []*tree.Node
	selected Set
	expanded Set
	logger   logrus.FieldLogger
}

// TreeOption configures a Tree.
type TreeOption func(*Tree)

// WithLogger sets the logger used to report repaired selection state.
func WithLogger(logger logrus.FieldLogger) TreeOption {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTree creates a selection engine over the given forest with nothing selected or expanded.
func NewTree(roots []*tree.Node, opts ...TreeOption) *Tree {
	t := &Tree{
		roots:    roots,
		selected: make(Set),
		expanded: make(Set),
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Roots returns the current forest. Callers must treat it as read-only.
func (t *Tree) Roots() []*tree.Node {
	return t.roots
}

// Len returns the number of selected nodes.
func (t *Tree) Len() int {
	return len(t.selected)
}

// Selected returns the selected IDs in ascending order.
func (t *Tree) Selected() []string {
	return t.selected.Sorted()
}

// IsSelected reports whether the node is selected.
func (t *Tree) IsSelected(id string) bool {
	return t.selected.Has(id)
}

// Expanded returns the expanded directory IDs in ascending order.
func (t *Tree) Expanded() []string {
	return t.expanded.Sorted()
}

// IsExpanded reports whether the directory is expanded.
func (t *Tree) IsExpanded(id string) bool {
	return t.expanded.Has(id)
}

// ToggleExpand flips the expansion of a directory. Unknown IDs and files are ignored.
func (t *Tree) ToggleExpand(dirID string) {
	n := tree.Find(t.roots, dirID)
	if n == nil || !n.IsDir() {
		return
	}
	if t.expanded.Has(dirID) {
		t.expanded.Remove(dirID)
	} else {
		t.expanded.Add(dirID)
	}
}

// SetSelected adds or removes a node. With cascade the node's whole current subtree
// is added or removed along with it, regardless of how descendants were selected.
func (t *Tree) SetSelected(id string, selected, cascade bool) {
	n := tree.Find(t.roots, id)
	if n == nil {
		t.logger.WithField("id", id).Debug("ignoring selection of unknown node")
		return
	}

	ids := []string{id}
	if cascade {
		ids = tree.Subtree(n)
	}
	for _, cur := range ids {
		if selected {
			t.selected.Add(cur)
		} else {
			t.selected.Remove(cur)
		}
	}
}

// SelectAll selects every node in the tree, or clears the selection.
func (t *Tree) SelectAll(selected bool) {
	if !selected {
		t.selected = make(Set)
		return
	}
	t.selected = NewSet(tree.IDs(t.roots)...)
}

// Clear empties the selection.
func (t *Tree) Clear() {
	t.selected = make(Set)
}

// CurrentSelection resolves the selected IDs to nodes in tree pre-order.
// IDs that no longer resolve are dropped from the selection.
func (t *Tree) CurrentSelection() []*tree.Node {
	nodes := make([]*tree.Node, 0, len(t.selected))
	present := make(Set, len(t.selected))
	tree.Walk(t.roots, func(n *tree.Node) bool {
		if t.selected.Has(n.ID) {
			nodes = append(nodes, n)
			present.Add(n.ID)
		}
		return true
	})

	if len(present) != len(t.selected) {
		for id := range t.selected {
			if !present.Has(id) {
				t.logger.WithField("id", id).Debug("dropping dangling selection")
				t.selected.Remove(id)
			}
		}
	}
	return nodes
}

// ApplyDeletion removes the given nodes and their subtrees from the tree and drops
// every selection and expansion entry that no longer resolves. It returns the number
// of nodes removed.
func (t *Tree) ApplyDeletion(ids []string) int {
	before := tree.Count(t.roots)
	t.swap(tree.Prune(t.roots, NewSet(ids...)))
	return before - tree.Count(t.roots)
}

// Replace installs a fresh snapshot of the tree. Selection and expansion entries
// whose IDs are absent from the snapshot are discarded.
func (t *Tree) Replace(roots []*tree.Node) {
	t.swap(roots)
}

// Restore reapplies previously saved selection and expansion state, keeping only IDs
// that resolve in the current tree. Directories are never cascaded.
func (t *Tree) Restore(selected, expanded []string) {
	index := tree.Index(t.roots)
	t.selected = make(Set)
	t.expanded = make(Set)
	for _, id := range selected {
		if _, ok := index[id]; ok {
			t.selected.Add(id)
		}
	}
	for _, id := range expanded {
		if n, ok := index[id]; ok && n.IsDir() {
			t.expanded.Add(id)
		}
	}
}

func (t *Tree) swap(roots []*tree.Node) {
	index := tree.Index(roots)
	selected := make(Set, len(t.selected))
	for id := range t.selected {
		if _, ok := index[id]; ok {
			selected.Add(id)
		}
	}
	expanded := make(Set, len(t.expanded))
	for id := range t.expanded {
		if n, ok := index[id]; ok && n.IsDir() {
			expanded.Add(id)
		}
	}
	t.roots = roots
	t.selected = selected
	t.expanded = expanded
}

// Summary describes the current selection for a confirmation prompt.
type Summary struct {
	Files       int          `json:"files"`
	Directories int          `json:"directories"`
	Nodes       []*tree.Node `json:"-"`
}

// Total returns the number of selected items.
func (s Summary) Total() int {
	return s.Files + s.Directories
}

// Describe renders the summary the way the delete confirmation phrases it.
func (s Summary) Describe() string {
	switch s.Total() {
	case 0:
		return "nothing"
	case 1:
		n := s.Nodes[0]
		if n.IsDir() {
			return fmt.Sprintf("the directory %q and all its contents", n.Name)
		}
		return fmt.Sprintf("the file %q", n.Name)
	}

	var parts []string
	if s.Directories > 0 {
		parts = append(parts, fmt.Sprintf("%d director%s", s.Directories, plural(s.Directories, "y", "ies")))
	}
	if s.Files > 0 {
		parts = append(parts, fmt.Sprintf("%d file%s", s.Files, plural(s.Files, "", "s")))
	}
	return fmt.Sprintf("%s (%d item%s)", strings.Join(parts, " and "), s.Total(), plural(s.Total(), "", "s"))
}

// Summary counts the selected files and directories.
func (t *Tree) Summary() Summary {
	nodes := t.CurrentSelection()
	s := Summary{Nodes: nodes}
	for _, n := range nodes {
		if n.IsDir() {
			s.Directories++
		} else {
			s.Files++
		}
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
