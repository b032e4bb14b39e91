package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// fakeBackend records calls and can block until released.
type fakeBackend struct {
	mu      sync.Mutex
	calls   [][]string
	saved   [][]models.Tag
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeBackend) DeleteArtifacts(ctx context.Context, owner string, ids []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	f.mu.Unlock()
	return f.wait(ctx)
}

func (f *fakeBackend) SaveRows(ctx context.Context, owner string, rows []models.Tag) error {
	f.mu.Lock()
	f.saved = append(f.saved, models.CloneTags(rows))
	f.mu.Unlock()
	return f.wait(ctx)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls) + len(f.saved)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *countingRecorder) RecordMutation(op, outcome string, items int, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, op+":"+outcome)
}

func scenarioTree() []*tree.Node {
	return []*tree.Node{
		{ID: "a", Name: "a", Kind: tree.KindDirectory, Children: []*tree.Node{
			{ID: "a/1", Name: "1", Kind: tree.KindFile},
			{ID: "a/2", Name: "2", Kind: tree.KindFile},
		}},
		{ID: "metrics.json", Name: "metrics.json", Kind: tree.KindFile},
	}
}

func TestDeleteArtifactsSuccess(t *testing.T) {
	backend := &fakeBackend{}
	rec := &countingRecorder{}
	c := New(backend, backend, WithMetrics(rec))
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("a", true, true))

	res, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
	require.NoError(t, err)

	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, []string{"a", "a/1", "a/2"}, res.IDs)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, [][]string{{"a", "a/1", "a/2"}}, backend.calls)

	snap := view.Snapshot()
	assert.Equal(t, []string{"metrics.json"}, tree.IDs(snap.Roots))
	assert.Empty(t, snap.Selected)
	assert.False(t, snap.Pending)
	assert.Equal(t, []string{"delete_artifacts:success"}, rec.outcomes)
}

func TestScenarioCPermissionDenied(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, backend)
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("a", true, true))
	before := view.Snapshot()

	for _, level := range []permission.Level{permission.LevelNone, permission.LevelView} {
		_, err := c.DeleteArtifacts(context.Background(), view, level)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	}

	assert.Equal(t, 0, backend.callCount(), "no persistence call may be made")
	assert.Equal(t, before, view.Snapshot())
}

func TestScenarioDPersistenceFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("s3: access denied")}
	c := New(backend, backend)
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("a/2", true, false))
	require.NoError(t, view.SetSelected("metrics.json", true, false))
	before := view.Snapshot()

	_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelAdmin)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "s3: access denied", perr.Reason)
	assert.Equal(t, before, view.Snapshot(), "tree and selection must be unchanged")

	// The selection stays active so the user can retry.
	backend.err = nil
	res, err := c.DeleteArtifacts(context.Background(), view, permission.LevelAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/2", "metrics.json"}, res.IDs)
}

func TestDeleteTimeoutIsPersistenceFailure(t *testing.T) {
	backend := &fakeBackend{release: make(chan struct{})}
	c := New(backend, backend, WithTimeout(10*time.Millisecond))
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("metrics.json", true, false))

	_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"metrics.json"}, view.Snapshot().Selected)
	assert.False(t, view.Pending())
}

func TestDeleteNothingSelected(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, backend)
	view := NewArtifactView("run-1", scenarioTree())

	_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
	assert.ErrorIs(t, err, ErrNothingSelected)
	assert.Equal(t, 0, backend.callCount())
	assert.False(t, view.Pending(), "guard must be released")
}

func TestConcurrentDeleteRejected(t *testing.T) {
	backend := &fakeBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(backend, backend)
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("a", true, true))

	done := make(chan error, 1)
	go func() {
		_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
		done <- err
	}()
	<-backend.started

	_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
	assert.ErrorIs(t, err, ErrOperationInProgress)

	// Selection is locked while the call is pending; expansion is not.
	assert.ErrorIs(t, view.SetSelected("metrics.json", true, false), ErrOperationInProgress)
	assert.ErrorIs(t, view.SelectAll(false), ErrOperationInProgress)
	view.ToggleExpand("a")
	assert.True(t, view.Snapshot().Pending)

	close(backend.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.callCount())
	assert.Equal(t, []string{"metrics.json"}, tree.IDs(view.Snapshot().Roots))
}

func TestAbandonedDeleteResultIsDiscarded(t *testing.T) {
	backend := &fakeBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(backend, backend)
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("a", true, true))

	done := make(chan error, 1)
	go func() {
		_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
		done <- err
	}()
	<-backend.started

	view.Abandon()
	close(backend.release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	snap := view.Snapshot()
	assert.Equal(t, tree.IDs(scenarioTree()), tree.IDs(snap.Roots), "stale result must not be applied")
	assert.False(t, snap.Pending)
}

func TestRefreshDuringDeleteDiscardsResult(t *testing.T) {
	backend := &fakeBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(backend, backend)
	view := NewArtifactView("run-1", scenarioTree())
	require.NoError(t, view.SetSelected("metrics.json", true, false))

	done := make(chan error, 1)
	go func() {
		_, err := c.DeleteArtifacts(context.Background(), view, permission.LevelEdit)
		done <- err
	}()
	<-backend.started

	view.Replace([]*tree.Node{{ID: "other.txt", Name: "other.txt", Kind: tree.KindFile}})
	close(backend.release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	assert.Equal(t, []string{"other.txt"}, tree.IDs(view.Snapshot().Roots))
}

func TestApplyRowEditsSuccess(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, backend)
	view := NewTagView("exp-1", []models.Tag{{Key: "task", Value: "LR"}})

	require.NoError(t, view.BeginEdit())
	require.NoError(t, view.Edit(func(rows *selection.Rows) error {
		i := rows.InsertRow("chaiya")
		rows.UpdateRow(i, "owner", "fraud")
		rows.InsertRow("chaiya") // left blank, dropped on commit
		return nil
	}))

	res, err := c.ApplyRowEdits(context.Background(), view, permission.LevelEdit)
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "owner", res.Rows[1].Key)
	require.Len(t, backend.saved, 1)
	assert.Len(t, backend.saved[0], 2)

	snap := view.Snapshot()
	assert.False(t, snap.Editing)
	assert.Len(t, snap.Tags, 2)
}

func TestApplyRowEditsEmptyKeyKeepsBuffer(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, backend)
	view := NewTagView("exp-1", nil)

	require.NoError(t, view.BeginEdit())
	require.NoError(t, view.Edit(func(rows *selection.Rows) error {
		i := rows.InsertRow("")
		rows.UpdateRow(i, "", "orphan")
		return nil
	}))

	_, err := c.ApplyRowEdits(context.Background(), view, permission.LevelEdit)
	assert.ErrorIs(t, err, selection.ErrEmptyKey)
	assert.Equal(t, 0, backend.callCount())

	snap := view.Snapshot()
	assert.True(t, snap.Editing, "buffer stays open for correction")
	assert.Equal(t, "orphan", snap.Buffer[0].Value)
	assert.False(t, snap.Pending)
}

func TestApplyRowEditsFailureRevertsToSnapshot(t *testing.T) {
	backend := &fakeBackend{err: errors.New("mlflow: 503")}
	c := New(backend, backend)
	original := []models.Tag{{Key: "x", Value: "1"}, {Key: "y", Value: "2"}}
	view := NewTagView("exp-1", original)

	require.NoError(t, view.BeginEdit())
	require.NoError(t, view.Edit(func(rows *selection.Rows) error {
		rows.ToggleRow(0, true)
		rows.DeleteSelected()
		return nil
	}))

	_, err := c.ApplyRowEdits(context.Background(), view, permission.LevelAdmin)
	assert.ErrorIs(t, err, ErrPersistence)

	snap := view.Snapshot()
	assert.False(t, snap.Editing, "edit buffer is discarded")
	assert.Equal(t, original, snap.Tags)
}

func TestApplyRowEditsPermissionAndState(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, backend)
	view := NewTagView("exp-1", nil)

	_, err := c.ApplyRowEdits(context.Background(), view, permission.LevelEdit)
	assert.ErrorIs(t, err, ErrNotEditing)

	require.NoError(t, view.BeginEdit())
	_, err = c.ApplyRowEdits(context.Background(), view, permission.LevelView)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, view.Editing())
	assert.Equal(t, 0, backend.callCount())
}

func TestConcurrentSaveRejected(t *testing.T) {
	backend := &fakeBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(backend, backend)
	view := NewTagView("exp-1", []models.Tag{{Key: "k", Value: "v"}})
	require.NoError(t, view.BeginEdit())

	done := make(chan error, 1)
	go func() {
		_, err := c.ApplyRowEdits(context.Background(), view, permission.LevelEdit)
		done <- err
	}()
	<-backend.started

	_, err := c.ApplyRowEdits(context.Background(), view, permission.LevelEdit)
	assert.ErrorIs(t, err, ErrOperationInProgress)
	assert.ErrorIs(t, view.Edit(func(*selection.Rows) error { return nil }), ErrOperationInProgress)
	assert.ErrorIs(t, view.CancelEdit(), ErrOperationInProgress)

	close(backend.release)
	require.NoError(t, <-done)
}

func TestAbandonedSaveResultIsDiscarded(t *testing.T) {
	backend := &fakeBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(backend, backend)
	view := NewTagView("exp-1", []models.Tag{{Key: "k", Value: "v"}})
	require.NoError(t, view.BeginEdit())
	require.NoError(t, view.Edit(func(rows *selection.Rows) error {
		rows.UpdateRow(0, "k", "changed")
		return nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := c.ApplyRowEdits(context.Background(), view, permission.LevelEdit)
		done <- err
	}()
	<-backend.started
	view.Abandon()
	close(backend.release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	assert.Equal(t, "v", view.Rows()[0].Value)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "denied", outcome(ErrPermissionDenied))
	assert.Equal(t, "busy", outcome(ErrOperationInProgress))
	assert.Equal(t, "stale", outcome(ErrStaleResult))
	assert.Equal(t, "empty", outcome(ErrNothingSelected))
	assert.Equal(t, "invalid", outcome(&selection.EmptyKeyError{}))
	assert.Equal(t, "failed", outcome(persistenceError("x", errors.New("boom"))))
}
