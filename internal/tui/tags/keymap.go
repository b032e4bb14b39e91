package tags

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings of the tag editor.
type KeyMap struct {
	keymap.Base
	Edit           key.Binding
	EditCell       key.Binding
	SwitchColumn   key.Binding
	Insert         key.Binding
	DeleteRow      key.Binding
	Toggle         key.Binding
	SelectAll      key.Binding
	SelectNone     key.Binding
	DeleteSelected key.Binding
	Save           key.Binding
	Discard        key.Binding
	Refresh        key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.EditCell, k.Save, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return append(k.Base.FullHelp(), []key.Binding{
		k.Edit,
		k.EditCell,
		k.SwitchColumn,
		k.Insert,
		k.DeleteRow,
	}, []key.Binding{
		k.Toggle,
		k.SelectAll,
		k.SelectNone,
		k.DeleteSelected,
	}, []key.Binding{
		k.Save,
		k.Discard,
		k.Refresh,
	})
}

var keys = KeyMap{
	Base: keymap.NewBase(),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "start editing"),
	),
	EditCell: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "edit cell"),
	),
	SwitchColumn: key.NewBinding(
		key.WithKeys("tab", "left", "right", "h", "l"),
		key.WithHelp("tab", "switch key/value"),
	),
	Insert: key.NewBinding(
		key.WithKeys("o", "i"),
		key.WithHelp("o", "add row"),
	),
	DeleteRow: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete row"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "toggle select"),
	),
	SelectAll: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "select all"),
	),
	SelectNone: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "deselect all"),
	),
	DeleteSelected: key.NewBinding(
		key.WithKeys("x", "D"),
		key.WithHelp("x", "delete selected rows"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s", "s"),
		key.WithHelp("s", "save"),
	),
	Discard: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "discard changes"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
}
