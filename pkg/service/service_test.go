package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

type memoryArtifacts struct {
	roots   map[string][]*tree.Node
	deleted []string
	loads   int
}

func (m *memoryArtifacts) LoadArtifacts(_ context.Context, owner string) ([]*tree.Node, error) {
	m.loads++
	return m.roots[owner], nil
}

func (m *memoryArtifacts) DeleteArtifacts(_ context.Context, owner string, ids []string) error {
	m.deleted = append(m.deleted, ids...)
	remove := make(map[string]struct{})
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	m.roots[owner] = tree.Prune(m.roots[owner], remove)
	return nil
}

type memoryTags struct {
	rows map[string][]models.Tag
}

func (m *memoryTags) LoadRows(_ context.Context, owner string) ([]models.Tag, error) {
	return models.CloneTags(m.rows[owner]), nil
}

func (m *memoryTags) SaveRows(_ context.Context, owner string, rows []models.Tag) error {
	m.rows[owner] = models.CloneTags(rows)
	return nil
}

type failingPermissions struct{}

func (failingPermissions) Level(context.Context, string, string) (permission.Level, error) {
	return permission.LevelAdmin, errors.New("registry unavailable")
}

func newTestService(t *testing.T, perms permission.Provider) (*Service, *memoryArtifacts, *memoryTags) {
	t.Helper()
	artifacts := &memoryArtifacts{roots: map[string][]*tree.Node{
		"run-1": {
			{ID: "model", Name: "model", Kind: tree.KindDirectory, Children: []*tree.Node{
				{ID: "model/weights.bin", Name: "weights.bin", Kind: tree.KindFile},
			}},
			{ID: "metrics.json", Name: "metrics.json", Kind: tree.KindFile},
		},
	}}
	tags := &memoryTags{rows: map[string][]models.Tag{
		"exp-1": {{Key: "task", Value: "LR"}},
	}}
	svc, err := New(&Config{DataDir: t.TempDir()}, Backends{Artifacts: artifacts, Tags: tags, Permissions: perms})
	require.NoError(t, err)
	return svc, artifacts, tags
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(&Config{}, Backends{})
	assert.Error(t, err)
}

func TestOpenArtifactsReusesView(t *testing.T) {
	svc, backend, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	v1, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	v2, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)

	assert.Same(t, v1, v2)
	assert.Equal(t, 1, backend.loads)
}

func TestDeleteSelectedArtifacts(t *testing.T) {
	svc, backend, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	v, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	require.NoError(t, v.SetSelected("model", true, true))

	res, err := svc.DeleteSelectedArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []string{"model", "model/weights.bin"}, backend.deleted)
	assert.Equal(t, []string{"metrics.json"}, tree.IDs(v.Snapshot().Roots))
}

func TestDeleteRequiresOpenView(t *testing.T) {
	svc, _, _ := newTestService(t, permission.Static{Default: permission.LevelAdmin})

	_, err := svc.DeleteSelectedArtifacts(context.Background(), "chaiya", "run-1")
	assert.ErrorIs(t, err, ErrViewNotOpen)
}

func TestPermissionOverrideDenies(t *testing.T) {
	perms := permission.Static{
		Default:   permission.LevelEdit,
		Overrides: map[string]permission.Level{permission.RunResource("run-1"): permission.LevelView},
	}
	svc, backend, _ := newTestService(t, perms)
	ctx := context.Background()

	v, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	require.NoError(t, v.SelectAll(true))

	_, err = svc.DeleteSelectedArtifacts(ctx, "chaiya", "run-1")
	assert.ErrorIs(t, err, mutation.ErrPermissionDenied)
	assert.Empty(t, backend.deleted)
}

func TestPermissionLookupFailureIsNone(t *testing.T) {
	svc, backend, _ := newTestService(t, failingPermissions{})
	ctx := context.Background()

	assert.Equal(t, permission.LevelNone, svc.Level(ctx, "chaiya", "run:run-1"))

	_, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	assert.ErrorIs(t, err, mutation.ErrPermissionDenied)
	_, err = svc.DeleteSelectedArtifacts(ctx, "chaiya", "run-1")
	assert.ErrorIs(t, err, ErrViewNotOpen)
	assert.Empty(t, backend.deleted)
	assert.Zero(t, backend.loads)
}

func TestViewsArePerUser(t *testing.T) {
	svc, _, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	mine, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	theirs, err := svc.OpenArtifacts(ctx, "niran", "run-1")
	require.NoError(t, err)
	require.NotSame(t, mine, theirs)

	require.NoError(t, theirs.SelectAll(true))
	assert.Empty(t, mine.Snapshot().Selected)

	tagsMine, err := svc.OpenTags(ctx, "chaiya", "exp-1")
	require.NoError(t, err)
	tagsTheirs, err := svc.OpenTags(ctx, "niran", "exp-1")
	require.NoError(t, err)
	require.NoError(t, tagsTheirs.BeginEdit())
	assert.False(t, tagsMine.Editing())

	// A user's apply only saves that user's buffer.
	_, err = svc.ApplyTagEdits(ctx, "chaiya", "exp-1")
	assert.ErrorIs(t, err, mutation.ErrNotEditing)
}

func TestNoneLevelCannotOpen(t *testing.T) {
	perms := permission.Static{
		Default:   permission.LevelEdit,
		Overrides: map[string]permission.Level{permission.ExperimentResource("exp-1"): permission.LevelNone},
	}
	svc, _, _ := newTestService(t, perms)
	ctx := context.Background()

	_, err := svc.OpenTags(ctx, "chaiya", "exp-1")
	assert.ErrorIs(t, err, mutation.ErrPermissionDenied)
	_, err = svc.RefreshTags(ctx, "chaiya", "exp-1")
	assert.ErrorIs(t, err, mutation.ErrPermissionDenied)

	assert.NoError(t, svc.RequireView(ctx, "chaiya", permission.RunResource("run-1")))
	assert.NoError(t, svc.RequireEdit(ctx, "chaiya", permission.RunResource("run-1")))
	assert.ErrorIs(t, svc.RequireEdit(ctx, "chaiya", permission.ExperimentResource("exp-1")), mutation.ErrPermissionDenied)
}

func TestDeleteUpdatesOtherUsersViews(t *testing.T) {
	svc, _, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	mine, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	theirs, err := svc.OpenArtifacts(ctx, "niran", "run-1")
	require.NoError(t, err)
	require.NoError(t, theirs.SetSelected("model/weights.bin", true, false))
	require.NoError(t, theirs.SetSelected("metrics.json", true, false))

	require.NoError(t, mine.SetSelected("model", true, true))
	_, err = svc.DeleteSelectedArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)

	snap := theirs.Snapshot()
	assert.Equal(t, []string{"metrics.json"}, snap.Selected)
	assert.Equal(t, []string{"metrics.json"}, tree.IDs(snap.Roots))
}

func TestApplyUpdatesOtherUsersCommittedRows(t *testing.T) {
	svc, _, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	mine, err := svc.OpenTags(ctx, "chaiya", "exp-1")
	require.NoError(t, err)
	theirs, err := svc.OpenTags(ctx, "niran", "exp-1")
	require.NoError(t, err)
	require.NoError(t, theirs.BeginEdit())

	require.NoError(t, mine.BeginEdit())
	require.NoError(t, mine.Edit(func(rows *selection.Rows) error {
		rows.UpdateRow(0, "task", "XGB")
		return nil
	}))
	_, err = svc.ApplyTagEdits(ctx, "chaiya", "exp-1")
	require.NoError(t, err)

	assert.Equal(t, "XGB", theirs.Rows()[0].Value)
	assert.True(t, theirs.Editing())
}

func TestRefreshArtifactsDropsVanishedSelection(t *testing.T) {
	svc, backend, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	v, err := svc.OpenArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	require.NoError(t, v.SetSelected("metrics.json", true, false))

	backend.roots["run-1"] = backend.roots["run-1"][:1]
	_, err = svc.RefreshArtifacts(ctx, "chaiya", "run-1")
	require.NoError(t, err)
	assert.Empty(t, v.Snapshot().Selected)
}

func TestOpenArtifactsRejectsInvalidTree(t *testing.T) {
	svc, backend, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	backend.roots["bad"] = []*tree.Node{
		{ID: "x", Name: "x", Kind: tree.KindFile},
		{ID: "x", Name: "x", Kind: tree.KindFile},
	}

	_, err := svc.OpenArtifacts(context.Background(), "chaiya", "bad")
	assert.ErrorIs(t, err, tree.ErrDuplicateID)
}

func TestCloseArtifacts(t *testing.T) {
	svc, _, _ := newTestService(t, permission.Static{Default: permission.LevelEdit})
	_, err := svc.OpenArtifacts(context.Background(), "chaiya", "run-1")
	require.NoError(t, err)

	svc.CloseArtifacts("chaiya", "run-1")
	_, err = svc.ArtifactView("chaiya", "run-1")
	assert.ErrorIs(t, err, ErrViewNotOpen)
	svc.CloseArtifacts("chaiya", "run-1")
}

func TestApplyTagEdits(t *testing.T) {
	svc, _, backend := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	v, err := svc.OpenTags(ctx, "chaiya", "exp-1")
	require.NoError(t, err)
	require.NoError(t, v.BeginEdit())
	require.NoError(t, v.Edit(func(rows *selection.Rows) error {
		i := rows.InsertRow("chaiya")
		rows.UpdateRow(i, "owner", "fraud")
		return nil
	}))

	res, err := svc.ApplyTagEdits(ctx, "chaiya", "exp-1")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Len(t, backend.rows["exp-1"], 2)
	assert.False(t, v.Editing())
}

func TestRefreshTagsKeepsEditBuffer(t *testing.T) {
	svc, _, backend := newTestService(t, permission.Static{Default: permission.LevelEdit})
	ctx := context.Background()

	v, err := svc.OpenTags(ctx, "chaiya", "exp-1")
	require.NoError(t, err)
	require.NoError(t, v.BeginEdit())

	backend.rows["exp-1"] = []models.Tag{{Key: "task", Value: "XGB"}}
	_, err = svc.RefreshTags(ctx, "chaiya", "exp-1")
	require.NoError(t, err)

	assert.True(t, v.Editing())
	assert.Equal(t, "XGB", v.Rows()[0].Value)

	svc.CloseTags("chaiya", "exp-1")
	_, err = svc.ApplyTagEdits(ctx, "chaiya", "exp-1")
	assert.ErrorIs(t, err, ErrViewNotOpen)
}
