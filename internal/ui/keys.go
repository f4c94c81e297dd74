package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings. Scrolling keys are handled by
// the log viewport's own key map.
type KeyMap struct {
	Retry  key.Binding
	Follow key.Binding // jump to the newest output and keep following it
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "restart backend"),
	),
	Follow: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "follow output"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Retry, k.Follow, k.Quit}
}
