package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []*Node {
	return []*Node{
		{ID: "preprocessor", Name: "preprocessor", Kind: KindDirectory, Children: []*Node{
			{ID: "preprocessor/config.json", Name: "config.json", Kind: KindFile},
			{ID: "preprocessor/vocab.txt", Name: "vocab.txt", Kind: KindFile},
		}},
		{ID: "estimator", Name: "estimator", Kind: KindDirectory, Children: []*Node{
			{ID: "estimator/model.pkl", Name: "model.pkl", Kind: KindFile},
			{ID: "estimator/inner", Name: "inner", Kind: KindDirectory, Children: []*Node{
				{ID: "estimator/inner/weights.bin", Name: "weights.bin", Kind: KindFile},
			}},
		}},
		{ID: "metrics.json", Name: "metrics.json", Kind: KindFile},
		{ID: "empty", Name: "empty", Kind: KindDirectory, Children: []*Node{}},
	}
}

func TestIDsPreOrder(t *testing.T) {
	ids := IDs(sampleTree())
	assert.Equal(t, []string{
		"preprocessor",
		"preprocessor/config.json",
		"preprocessor/vocab.txt",
		"estimator",
		"estimator/model.pkl",
		"estimator/inner",
		"estimator/inner/weights.bin",
		"metrics.json",
		"empty",
	}, ids)
	assert.Equal(t, 9, Count(sampleTree()))
}

func TestFindAndSubtree(t *testing.T) {
	roots := sampleTree()

	n := Find(roots, "estimator/inner")
	require.NotNil(t, n)
	assert.Equal(t, "inner", n.Name)

	assert.Nil(t, Find(roots, "missing"))

	assert.ElementsMatch(t, []string{
		"estimator", "estimator/model.pkl", "estimator/inner", "estimator/inner/weights.bin",
	}, Subtree(Find(roots, "estimator")))

	assert.Equal(t, []string{"empty"}, Subtree(Find(roots, "empty")))
	assert.Nil(t, Subtree(nil))
}

func TestPruneDoesNotModifyInput(t *testing.T) {
	roots := sampleTree()
	before := IDs(roots)

	pruned := Prune(roots, map[string]struct{}{
		"estimator/inner": {},
		"metrics.json":    {},
	})

	assert.Equal(t, before, IDs(roots), "input forest must be untouched")
	assert.Equal(t, []string{
		"preprocessor",
		"preprocessor/config.json",
		"preprocessor/vocab.txt",
		"estimator",
		"estimator/model.pkl",
		"empty",
	}, IDs(pruned))

	// Untouched subtrees are shared, modified paths are copies.
	assert.Same(t, roots[0], pruned[0])
	assert.NotSame(t, roots[1], pruned[1])
}

func TestPruneWholeTree(t *testing.T) {
	roots := []*Node{
		{ID: "a", Kind: KindDirectory, Children: []*Node{
			{ID: "a/1", Kind: KindFile},
			{ID: "a/2", Kind: KindFile},
		}},
	}
	pruned := Prune(roots, map[string]struct{}{"a": {}, "a/1": {}, "a/2": {}})
	assert.Empty(t, pruned)
}

func TestPruneDropsNilEntries(t *testing.T) {
	inner := &Node{ID: "a", Kind: KindDirectory, Children: []*Node{
		nil,
		{ID: "a/1", Kind: KindFile},
	}}
	roots := []*Node{nil, inner, {ID: "b", Kind: KindFile}}

	var pruned []*Node
	require.NotPanics(t, func() {
		pruned = Prune(roots, map[string]struct{}{"b": {}})
	})
	assert.Equal(t, []string{"a", "a/1"}, IDs(pruned))
	require.Len(t, pruned, 1)
	assert.Len(t, pruned[0].Children, 1)
	assert.NotSame(t, inner, pruned[0])
	assert.Len(t, inner.Children, 2, "input forest must be untouched")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sampleTree()))

	dup := []*Node{
		{ID: "a", Kind: KindDirectory, Children: []*Node{{ID: "b", Kind: KindFile}}},
		{ID: "b", Kind: KindFile},
	}
	assert.ErrorIs(t, Validate(dup), ErrDuplicateID)

	bad := []*Node{{ID: "f", Kind: KindFile, Children: []*Node{{ID: "g", Kind: KindFile}}}}
	assert.ErrorIs(t, Validate(bad), ErrFileChildren)
}

func TestWalkSkipsDescendants(t *testing.T) {
	var visited []string
	Walk(sampleTree(), func(n *Node) bool {
		visited = append(visited, n.ID)
		return n.ID != "estimator"
	})
	assert.NotContains(t, visited, "estimator/model.pkl")
	assert.Contains(t, visited, "metrics.json")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "10 B", FormatSize(10))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
	assert.Equal(t, "2.0 MiB", FormatSize(2<<20))
}
