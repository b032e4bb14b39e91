package selection

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

func dir(id string, children ...*tree.Node) *tree.Node {
	if children == nil {
		children = []*tree.Node{}
	}
	return &tree.Node{ID: id, Name: id, Kind: tree.KindDirectory, Children: children}
}

func file(id string) *tree.Node {
	return &tree.Node{ID: id, Name: id, Kind: tree.KindFile}
}

func artifacts() []*tree.Node {
	return []*tree.Node{
		dir("preprocessor", file("preprocessor/config.json"), file("preprocessor/vocab.txt")),
		dir("estimator",
			file("estimator/model.pkl"),
			dir("estimator/inner", file("estimator/inner/weights.bin")),
		),
		file("metrics.json"),
		dir("empty"),
	}
}

func TestCascadeSelectsWholeSubtree(t *testing.T) {
	s := NewTree(artifacts())

	s.SetSelected("estimator", true, true)
	assert.Equal(t, []string{
		"estimator",
		"estimator/inner",
		"estimator/inner/weights.bin",
		"estimator/model.pkl",
	}, s.Selected())
}

func TestCascadeOnEmptyDirectory(t *testing.T) {
	s := NewTree(artifacts())
	s.SetSelected("empty", true, true)
	assert.Equal(t, []string{"empty"}, s.Selected())
}

func TestNonCascadeSelectsOnlyNode(t *testing.T) {
	s := NewTree(artifacts())
	s.SetSelected("estimator", true, false)
	assert.Equal(t, []string{"estimator"}, s.Selected())
}

func TestSetSelectedIdempotent(t *testing.T) {
	s := NewTree(artifacts())
	s.SetSelected("metrics.json", true, false)
	once := s.Selected()
	s.SetSelected("metrics.json", true, false)
	assert.Equal(t, once, s.Selected())

	s.SetSelected("preprocessor", true, true)
	s.SetSelected("preprocessor/vocab.txt", true, true)
	assert.Len(t, s.Selected(), 4)
}

func TestCascadeDeselectRemovesIndependentlySelectedChild(t *testing.T) {
	s := NewTree(artifacts())

	s.SetSelected("estimator/inner/weights.bin", true, false)
	s.SetSelected("estimator", true, true)
	s.SetSelected("estimator", false, true)

	assert.Empty(t, s.Selected())
}

func TestCascadeUsesCurrentTree(t *testing.T) {
	s := NewTree(artifacts())
	s.SetSelected("estimator", true, true)
	s.SetSelected("estimator", false, true)

	// The directory gains a child after a refresh; the next cascade must see it.
	fresh := artifacts()
	fresh[1].Children = append(fresh[1].Children, file("estimator/new.txt"))
	s.Replace(fresh)

	s.SetSelected("estimator", true, true)
	assert.Contains(t, s.Selected(), "estimator/new.txt")
	assert.Len(t, s.Selected(), 5)
}

func TestUnknownIDIsIgnored(t *testing.T) {
	s := NewTree(artifacts())
	s.SetSelected("nope", true, true)
	s.ToggleExpand("nope")
	assert.Empty(t, s.Selected())
	assert.Empty(t, s.Expanded())
}

func TestToggleExpand(t *testing.T) {
	s := NewTree(artifacts())

	s.ToggleExpand("preprocessor")
	assert.True(t, s.IsExpanded("preprocessor"))
	s.ToggleExpand("preprocessor")
	assert.False(t, s.IsExpanded("preprocessor"))

	// Files cannot be expanded.
	s.ToggleExpand("metrics.json")
	assert.False(t, s.IsExpanded("metrics.json"))

	// Expansion is independent of selection.
	s.ToggleExpand("estimator")
	assert.Empty(t, s.Selected())
}

func TestSelectAll(t *testing.T) {
	s := NewTree(artifacts())
	s.SelectAll(true)
	assert.ElementsMatch(t, tree.IDs(artifacts()), s.Selected())

	s.SelectAll(false)
	assert.Empty(t, s.Selected())
}

func TestCurrentSelectionPreOrderAndSelfHeals(t *testing.T) {
	s := NewTree(artifacts())
	s.SetSelected("metrics.json", true, false)
	s.SetSelected("preprocessor/vocab.txt", true, false)

	// Simulate a dangling entry that bypassed the documented operations.
	s.selected.Add("ghost")

	nodes := s.CurrentSelection()
	require.Len(t, nodes, 2)
	assert.Equal(t, "preprocessor/vocab.txt", nodes[0].ID)
	assert.Equal(t, "metrics.json", nodes[1].ID)
	assert.False(t, s.IsSelected("ghost"))
}

func TestDanglingSelectionRepairLogsAtDebug(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := NewTree(artifacts(), WithLogger(logger))
	s.selected.Add("ghost")

	s.CurrentSelection()
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "ghost", entry.Data["id"])
}

func TestScenarioA(t *testing.T) {
	s := NewTree([]*tree.Node{
		dir("a", file("a/1"), file("a/2")),
	})

	s.SetSelected("a", true, true)
	assert.Equal(t, []string{"a", "a/1", "a/2"}, s.Selected())

	removed := s.ApplyDeletion([]string{"a", "a/1", "a/2"})
	assert.Equal(t, 3, removed)
	assert.Empty(t, s.Roots())
	assert.Empty(t, s.Selected())
}

func TestApplyDeletionDropsDescendantsAndExpansion(t *testing.T) {
	s := NewTree(artifacts())
	s.ToggleExpand("estimator")
	s.ToggleExpand("estimator/inner")
	s.SetSelected("estimator/inner/weights.bin", true, false)
	s.SetSelected("metrics.json", true, false)

	// Deleting the directory alone must take its selected descendants with it.
	s.ApplyDeletion([]string{"estimator"})

	assert.Nil(t, tree.Find(s.Roots(), "estimator"))
	assert.Equal(t, []string{"metrics.json"}, s.Selected())
	assert.Empty(t, s.Expanded())

	for _, id := range s.Selected() {
		assert.NotNil(t, tree.Find(s.Roots(), id), "selection must not dangle: %s", id)
	}
}

func TestApplyDeletionPropertyNoDeletedIDSurvives(t *testing.T) {
	candidates := tree.IDs(artifacts())
	// Every prefix of the pre-order enumeration is a deletion set worth checking.
	for n := 0; n <= len(candidates); n++ {
		deleted := candidates[:n]
		s := NewTree(artifacts())
		s.SelectAll(true)

		s.ApplyDeletion(deleted)

		index := tree.Index(s.Roots())
		for _, id := range deleted {
			assert.NotContains(t, index, id)
			assert.False(t, s.IsSelected(id))
		}
		for _, id := range s.Selected() {
			assert.Contains(t, index, id)
		}
	}
}

func TestReplaceDropsStaleSelection(t *testing.T) {
	s := NewTree(artifacts())
	s.SelectAll(true)
	s.ToggleExpand("preprocessor")

	s.Replace([]*tree.Node{file("metrics.json")})

	assert.Equal(t, []string{"metrics.json"}, s.Selected())
	assert.Empty(t, s.Expanded())
}

func TestRestore(t *testing.T) {
	s := NewTree(artifacts())
	s.Restore([]string{"metrics.json", "ghost"}, []string{"estimator", "metrics.json"})

	assert.Equal(t, []string{"metrics.json"}, s.Selected())
	assert.Equal(t, []string{"estimator"}, s.Expanded())
}

func TestSummaryDescribe(t *testing.T) {
	s := NewTree(artifacts())
	assert.Equal(t, "nothing", s.Summary().Describe())

	s.SetSelected("empty", true, false)
	assert.Equal(t, `the directory "empty" and all its contents`, s.Summary().Describe())

	s.Clear()
	s.SetSelected("metrics.json", true, false)
	assert.Equal(t, `the file "metrics.json"`, s.Summary().Describe())

	s.SetSelected("preprocessor", true, true)
	sum := s.Summary()
	assert.Equal(t, 1, sum.Directories)
	assert.Equal(t, 3, sum.Files)
	assert.Equal(t, "1 directory and 3 files (4 items)", sum.Describe())
}
