package selection

import (
	"sort"
	"time"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
)

// Rows is the edit buffer of a key/value table. Rows are identified by position,
// so the selection is a set of indices that is renumbered whenever rows are removed.
type Rows struct {
	rows     []models.Tag
	selected map[int]struct{}
	now      func() time.Time
}

// NewRows creates an edit buffer holding a copy of the given rows.
func NewRows(rows []models.Tag) *Rows {
	return &Rows{
		rows:     models.CloneTags(rows),
		selected: make(map[int]struct{}),
		now:      time.Now,
	}
}

// Rows returns a copy of the current row sequence.
func (r *Rows) Rows() []models.Tag {
	out := make([]models.Tag, len(r.rows))
	copy(out, r.rows)
	return out
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.rows)
}

func (r *Rows) inRange(index int) bool {
	return index >= 0 && index < len(r.rows)
}

// ToggleRow adds or removes a single index. Out of range indices are ignored.
func (r *Rows) ToggleRow(index int, selected bool) {
	if !r.inRange(index) {
		return
	}
	if selected {
		r.selected[index] = struct{}{}
	} else {
		delete(r.selected, index)
	}
}

// SelectAll selects every row, or clears the selection.
func (r *Rows) SelectAll(selected bool) {
	r.selected = make(map[int]struct{}, len(r.rows))
	if !selected {
		return
	}
	for i := range r.rows {
		r.selected[i] = struct{}{}
	}
}

// ClearSelection empties the selection.
func (r *Rows) ClearSelection() {
	r.selected = make(map[int]struct{})
}

// Selected returns the selected indices in ascending order.
func (r *Rows) Selected() []int {
	out := make([]int, 0, len(r.selected))
	for i := range r.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// IsSelected reports whether the row at index is selected.
func (r *Rows) IsSelected(index int) bool {
	_, ok := r.selected[index]
	return ok
}

// AllSelected reports whether there is at least one row and every row is selected.
func (r *Rows) AllSelected() bool {
	return len(r.rows) > 0 && len(r.selected) == len(r.rows)
}

// InsertRow appends an empty row and returns its index. The new row is not selected.
func (r *Rows) InsertRow(createdBy string) int {
	r.rows = append(r.rows, models.Tag{
		CreatedBy: createdBy,
		CreatedAt: r.now(),
	})
	return len(r.rows) - 1
}

// UpdateRow replaces the key and value of the row at index.
func (r *Rows) UpdateRow(index int, key, value string) bool {
	if !r.inRange(index) {
		return false
	}
	r.rows[index].Key = key
	r.rows[index].Value = value
	return true
}

// DeleteRow removes the row at index. Selected indices above it shift down by one
// so they keep pointing at the same rows; the deleted index leaves the selection.
func (r *Rows) DeleteRow(index int) bool {
	if !r.inRange(index) {
		return false
	}
	r.rows = append(r.rows[:index:index], r.rows[index+1:]...)

	adjusted := make(map[int]struct{}, len(r.selected))
	for i := range r.selected {
		switch {
		case i < index:
			adjusted[i] = struct{}{}
		case i > index:
			adjusted[i-1] = struct{}{}
		}
	}
	r.selected = adjusted
	return true
}

// DeleteSelected removes every selected row in one pass and clears the selection.
// Rows are filtered by their original index, which is equivalent to deleting in
// descending index order. It returns the number of rows removed.
func (r *Rows) DeleteSelected() int {
	if len(r.selected) == 0 {
		return 0
	}
	kept := make([]models.Tag, 0, len(r.rows)-len(r.selected))
	for i, row := range r.rows {
		if _, ok := r.selected[i]; ok {
			continue
		}
		kept = append(kept, row)
	}
	removed := len(r.rows) - len(kept)
	r.rows = kept
	r.selected = make(map[int]struct{})
	return removed
}
