package mutation

import (
	"context"
	"sync"

	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// ArtifactDeleter removes artifacts from the persistence service.
type ArtifactDeleter interface {
	DeleteArtifacts(ctx context.Context, owner string, ids []string) error
}

// ArtifactLoader supplies the artifact tree of a run.
type ArtifactLoader interface {
	LoadArtifacts(ctx context.Context, owner string) ([]*tree.Node, error)
}

// ArtifactView is the artifact tree of one run together with its selection state.
// All methods are safe for concurrent use.
type ArtifactView struct {
	owner string

	mu    sync.Mutex
	sel   *selection.Tree
	guard guard
}

// ArtifactSnapshot is a consistent read of an ArtifactView.
type ArtifactSnapshot struct {
	Owner    string       `json:"owner"`
	Roots    []*tree.Node `json:"artifacts"`
	Selected []string     `json:"selected"`
	Expanded []string     `json:"expanded"`
	Pending  bool         `json:"pending"`
}

// NewArtifactView creates a view over roots with nothing selected.
func NewArtifactView(owner string, roots []*tree.Node, opts ...selection.TreeOption) *ArtifactView {
	return &ArtifactView{
		owner: owner,
		sel:   selection.NewTree(roots, opts...),
	}
}

// Owner returns the run the view belongs to.
func (v *ArtifactView) Owner() string {
	return v.owner
}

// Snapshot returns the current tree, selection and expansion.
func (v *ArtifactView) Snapshot() ArtifactSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ArtifactSnapshot{
		Owner:    v.owner,
		Roots:    v.sel.Roots(),
		Selected: v.sel.Selected(),
		Expanded: v.sel.Expanded(),
		Pending:  v.guard.busy(),
	}
}

// Pending reports whether a mutation is in flight.
func (v *ArtifactView) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.guard.busy()
}

// ToggleExpand flips a directory's expansion. It stays available while a mutation is pending.
func (v *ArtifactView) ToggleExpand(dirID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.ToggleExpand(dirID)
}

// SetSelected selects or deselects a node, cascading over its subtree when asked.
func (v *ArtifactView) SetSelected(id string, selected, cascade bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.guard.busy() {
		return ErrOperationInProgress
	}
	v.sel.SetSelected(id, selected, cascade)
	return nil
}

// SelectAll selects every node or clears the selection.
func (v *ArtifactView) SelectAll(selected bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.guard.busy() {
		return ErrOperationInProgress
	}
	v.sel.SelectAll(selected)
	return nil
}

// Restore reapplies saved selection and expansion, dropping IDs absent from the tree.
func (v *ArtifactView) Restore(selected, expanded []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.guard.busy() {
		return ErrOperationInProgress
	}
	v.sel.Restore(selected, expanded)
	return nil
}

// Summary describes the current selection.
func (v *ArtifactView) Summary() selection.Summary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel.Summary()
}

// Replace installs a refreshed tree. A mutation pending at that moment has its result discarded.
func (v *ArtifactView) Replace(roots []*tree.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.guard.invalidate()
	v.sel.Replace(roots)
}

// Abandon marks the view as no longer displayed. A late persistence result is discarded.
func (v *ArtifactView) Abandon() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.guard.invalidate()
}

func (v *ArtifactView) beginDelete() (ticket, []string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	t, err := v.guard.acquire()
	if err != nil {
		return ticket{}, nil, err
	}

	nodes := v.sel.CurrentSelection()
	if len(nodes) == 0 {
		v.guard.release(t)
		return ticket{}, nil, ErrNothingSelected
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return t, ids, nil
}

func (v *ArtifactView) finishDelete(t ticket, ids []string, callErr error) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.guard.release(t) {
		return 0, ErrStaleResult
	}
	if callErr != nil {
		return 0, persistenceError("delete artifacts", callErr)
	}
	return v.sel.ApplyDeletion(ids), nil
}
