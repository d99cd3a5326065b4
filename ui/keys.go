package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle        key.Binding
	SkipPrimary   key.Binding
	SkipSecondary key.Binding
	SeekBack      key.Binding
	SeekForward   key.Binding
	VolumeUp      key.Binding
	VolumeDown    key.Binding
	Mute          key.Binding
	Next          key.Binding
	Prev          key.Binding
	Copy          key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle:        key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "play/pause")),
		SkipPrimary:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "arabic")),
		SkipSecondary: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "english")),
		SeekBack:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "back")),
		SeekForward:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "forward")),
		VolumeUp:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "louder")),
		VolumeDown:    key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "quieter")),
		Mute:          key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Next:          key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next verse")),
		Prev:          key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous verse")),
		Copy:          key.NewBinding(key.WithKeys("y", "c"), key.WithHelp("y", "copy")),
		ScrollUp:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "scroll up")),
		ScrollDown:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "scroll down")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:          key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.SkipPrimary, k.SkipSecondary, k.Mute, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.SkipPrimary, k.SkipSecondary},
		{k.SeekBack, k.SeekForward, k.VolumeUp, k.VolumeDown, k.Mute},
		{k.Next, k.Prev, k.Copy},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}

// setRange enables verse navigation only when there is more than one verse.
func (k *keyMap) setRange(multi bool) {
	k.Next.SetEnabled(multi)
	k.Prev.SetEnabled(multi)
}
