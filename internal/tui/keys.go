package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keybindings of the progress view.
type keyMap struct {
	Cancel key.Binding
}

var keys = keyMap{
	Cancel: key.NewBinding(
		key.WithKeys("ctrl+c", "q", "esc"),
		key.WithHelp("ctrl+c", "cancel"),
	),
}
