package artifacts

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings of the artifact browser.
type KeyMap struct {
	keymap.Base
	Toggle     key.Binding
	ToggleOne  key.Binding
	Fold       key.Binding
	SelectAll  key.Binding
	SelectNone key.Binding
	Delete     key.Binding
	Refresh    key.Binding
	GoToTop    key.Binding
	GoToBottom key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Fold, k.Delete, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return append(k.Base.FullHelp(), []key.Binding{
		k.GoToTop,
		k.GoToBottom,
		k.Fold,
		k.Refresh,
	}, []key.Binding{
		k.Toggle,
		k.ToggleOne,
		k.SelectAll,
		k.SelectNone,
		k.Delete,
	})
}

var keys = KeyMap{
	Base: keymap.NewBase(),
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "select (with contents)"),
	),
	ToggleOne: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "select this entry only"),
	),
	Fold: key.NewBinding(
		key.WithKeys("enter", "tab"),
		key.WithHelp("enter", "expand/collapse"),
	),
	SelectAll: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "select all"),
	),
	SelectNone: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "deselect all"),
	),
	Delete: key.NewBinding(
		key.WithKeys("x", "delete"),
		key.WithHelp("x", "delete selected"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r", "ctrl+r"),
		key.WithHelp("r", "reload from store"),
	),
	GoToTop: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "go to top"),
	),
	GoToBottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "go to bottom"),
	),
}
