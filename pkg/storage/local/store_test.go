package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func fixture(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	run := filepath.Join(root, "run-1")
	writeFile(t, filepath.Join(run, "metrics.json"), "{}")
	writeFile(t, filepath.Join(run, "model", "weights.bin"), "0123456789")
	writeFile(t, filepath.Join(run, "model", "conf", "params.yaml"), "lr: 0.1")
	require.NoError(t, os.MkdirAll(filepath.Join(run, "empty"), 0755))
	return New(root, nil)
}

func TestLoadArtifacts(t *testing.T) {
	s := fixture(t)

	roots, err := s.LoadArtifacts(context.Background(), "run-1")
	require.NoError(t, err)
	require.NoError(t, tree.Validate(roots))

	assert.Equal(t, []string{
		"empty",
		"model",
		"model/conf",
		"model/conf/params.yaml",
		"model/weights.bin",
		"metrics.json",
	}, tree.IDs(roots))

	empty := tree.Find(roots, "empty")
	require.NotNil(t, empty)
	assert.True(t, empty.IsDir())
	assert.NotNil(t, empty.Children)
	assert.Empty(t, empty.Children)

	weights := tree.Find(roots, "model/weights.bin")
	require.NotNil(t, weights)
	assert.Equal(t, int64(10), weights.Size)
	assert.Equal(t, "weights.bin", weights.Name)
}

func TestLoadArtifactsMissingRun(t *testing.T) {
	s := New(t.TempDir(), nil)

	roots, err := s.LoadArtifacts(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func TestLoadArtifactsRejectsBadRun(t *testing.T) {
	s := New(t.TempDir(), nil)
	for _, owner := range []string{"", "..", "a/b"} {
		_, err := s.LoadArtifacts(context.Background(), owner)
		assert.Error(t, err, owner)
	}
}

func TestDeleteArtifacts(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()

	require.NoError(t, s.DeleteArtifacts(ctx, "run-1", []string{"model", "model/conf", "model/weights.bin", "metrics.json"}))

	roots, err := s.LoadArtifacts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, tree.IDs(roots))
}

func TestDeleteArtifactsRejectsEscape(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()

	for _, id := range []string{"../run-2", "model/../../x", "/etc/passwd", "", "."} {
		err := s.DeleteArtifacts(ctx, "run-1", []string{"metrics.json", id})
		assert.ErrorIs(t, err, ErrOutsideRoot, id)
	}

	// Validation happens before removal, so nothing was deleted.
	roots, err := s.LoadArtifacts(ctx, "run-1")
	require.NoError(t, err)
	assert.NotNil(t, tree.Find(roots, "metrics.json"))
}
