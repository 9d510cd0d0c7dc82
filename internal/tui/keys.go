package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard bindings of the chat view.
type KeyMap struct {
	Send           key.Binding
	Mark           key.Binding
	Summarize      key.Binding
	DismissSummary key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	Quit           key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Mark: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "mark last"),
		),
		Summarize: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "summarize marked"),
		),
		DismissSummary: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "dismiss"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

func (k KeyMap) footerBindings() []key.Binding {
	return []key.Binding{k.Send, k.Mark, k.Summarize, k.DismissSummary, k.Quit}
}
