package mutation

import (
	"context"
	"sync"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
)

// RowSaver persists the full tag table of an owner.
type RowSaver interface {
	SaveRows(ctx context.Context, owner string, rows []models.Tag) error
}

// RowLoader supplies the tag table of an owner.
type RowLoader interface {
	LoadRows(ctx context.Context, owner string) ([]models.Tag, error)
}

// TagView is the committed tag table of one experiment plus an optional edit buffer.
// All methods are safe for concurrent use.
type TagView struct {
	owner string

	mu        sync.Mutex
	committed []models.Tag
	edit      *selection.Rows
	guard     guard
}

// TagSnapshot is a consistent read of a TagView.
type TagSnapshot struct {
	Owner    string       `json:"owner"`
	Tags     []models.Tag `json:"tags"`
	Editing  bool         `json:"editing"`
	Buffer   []models.Tag `json:"buffer,omitempty"`
	Selected []int        `json:"selected,omitempty"`
	Pending  bool         `json:"pending"`
}

// NewTagView creates a view over the committed rows.
func NewTagView(owner string, rows []models.Tag) *TagView {
	return &TagView{
		owner:     owner,
		committed: models.CloneTags(rows),
	}
}

// Owner returns the experiment the view belongs to.
func (v *TagView) Owner() string {
	return v.owner
}

// Snapshot returns the committed rows and, during an edit, the buffer and its selection.
func (v *TagView) Snapshot() TagSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := TagSnapshot{
		Owner:   v.owner,
		Tags:    models.CloneTags(v.committed),
		Editing: v.edit != nil,
		Pending: v.guard.busy(),
	}
	if v.edit != nil {
		s.Buffer = v.edit.Rows()
		s.Selected = v.edit.Selected()
	}
	return s
}

// Rows returns a copy of the committed rows.
func (v *TagView) Rows() []models.Tag {
	v.mu.Lock()
	defer v.mu.Unlock()
	return models.CloneTags(v.committed)
}

// Editing reports whether an edit session is open.
func (v *TagView) Editing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.edit != nil
}

// BeginEdit opens an edit session on a copy of the committed rows, replacing any open one.
func (v *TagView) BeginEdit() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.guard.busy() {
		return ErrOperationInProgress
	}
	v.edit = selection.NewRows(v.committed)
	return nil
}

// CancelEdit discards the edit buffer.
func (v *TagView) CancelEdit() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.guard.busy() {
		return ErrOperationInProgress
	}
	v.edit = nil
	return nil
}

// Edit runs fn against the edit buffer under the view's lock.
func (v *TagView) Edit(fn func(rows *selection.Rows) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return ErrNotEditing
	}
	if v.guard.busy() {
		return ErrOperationInProgress
	}
	return fn(v.edit)
}

// Replace installs refreshed committed rows. An open edit buffer is kept; a pending
// save has its result discarded.
func (v *TagView) Replace(rows []models.Tag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.guard.invalidate()
	v.committed = models.CloneTags(rows)
}

// Abandon marks the view as no longer displayed. A late persistence result is discarded.
func (v *TagView) Abandon() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.guard.invalidate()
}

func (v *TagView) beginSave() (ticket, []models.Tag, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.edit == nil {
		return ticket{}, nil, ErrNotEditing
	}
	t, err := v.guard.acquire()
	if err != nil {
		return ticket{}, nil, err
	}

	cleaned, err := selection.Commit(v.edit.Rows())
	if err != nil {
		v.guard.release(t)
		return ticket{}, nil, err
	}
	return t, cleaned, nil
}

func (v *TagView) finishSave(t ticket, cleaned []models.Tag, callErr error) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.guard.release(t) {
		return ErrStaleResult
	}
	v.edit = nil
	if callErr != nil {
		return persistenceError("save tags", callErr)
	}
	v.committed = cleaned
	return nil
}
