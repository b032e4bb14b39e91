package confirm

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func summaryOf(t *testing.T, roots []*tree.Node, ids ...string) selection.Summary {
	t.Helper()
	sel := selection.NewTree(roots)
	for _, id := range ids {
		sel.SetSelected(id, true, true)
	}
	return sel.Summary()
}

func modelTree() []*tree.Node {
	return []*tree.Node{
		{ID: "model", Name: "model", Kind: tree.KindDirectory, Children: []*tree.Node{
			{ID: "model/weights.bin", Name: "weights.bin", Kind: tree.KindFile, Size: 2048},
		}},
		{ID: "metrics.json", Name: "metrics.json", Kind: tree.KindFile, Size: 12},
	}
}

func TestAskDeleteShowsSummaryAndPaths(t *testing.T) {
	m := New()
	m.AskDelete(summaryOf(t, modelTree(), "model"))
	require.True(t, m.Active())
	assert.Equal(t, ActionDelete, m.Action)

	view := m.View()
	assert.Contains(t, view, "Delete 1 directory and 1 file (2 items)?")
	assert.Contains(t, view, "model/")
	assert.Contains(t, view, "model/weights.bin  "+tree.FormatSize(2048))
	assert.NotContains(t, view, "metrics.json")

	m, cmd := m.Update(keyMsg("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, ConfirmedMsg{Action: ActionDelete}, cmd())
	assert.False(t, m.Active())
	assert.Empty(t, m.View())
}

func TestAskDeleteCapsListing(t *testing.T) {
	var roots []*tree.Node
	var ids []string
	for i := 0; i < maxListed+3; i++ {
		id := fmt.Sprintf("part-%02d.parquet", i)
		roots = append(roots, &tree.Node{ID: id, Name: id, Kind: tree.KindFile})
		ids = append(ids, id)
	}

	m := New()
	m.AskDelete(summaryOf(t, roots, ids...))
	require.Len(t, m.Lines, maxListed+1)
	assert.Equal(t, "... and 3 more", m.Lines[maxListed])
	assert.Contains(t, m.Title, "11 files (11 items)")
}

func TestAskDiscardCarriesAction(t *testing.T) {
	m := New()
	m.AskDiscard(3, true)
	assert.Equal(t, "Discard unsaved changes and quit?", m.Title)
	assert.Contains(t, m.View(), "3 rows in the edit buffer will be lost")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelledMsg{Action: ActionDiscardAndQuit}, cmd())
	assert.False(t, m.Active())

	m.AskDiscard(1, false)
	assert.Equal(t, ActionDiscard, m.Action)
}

func TestInactiveIgnoresKeys(t *testing.T) {
	m := New()
	_, cmd := m.Update(keyMsg("y"))
	assert.Nil(t, cmd)
}

func TestOtherKeysKeepDialogOpen(t *testing.T) {
	m := New()
	m.AskDiscard(1, false)
	m, cmd := m.Update(keyMsg("x"))
	assert.Nil(t, cmd)
	assert.True(t, m.Active())
}
