package keys

import "github.com/charmbracelet/bubbles/key"

// CommonKeys are bound in every TUI view.
type CommonKeys struct {
	Quit key.Binding
	Help key.Binding
}

func NewCommonKeys() CommonKeys {
	return CommonKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

// WatchKeys drive the live event monitor.
type WatchKeys struct {
	CommonKeys
	Clear     key.Binding
	Pause     key.Binding
	ToggleDTR key.Binding
	ToggleRTS key.Binding
	Break     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
}

func NewWatchKeys() WatchKeys {
	return WatchKeys{
		CommonKeys: NewCommonKeys(),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear events"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause"),
		),
		ToggleDTR: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle DTR"),
		),
		ToggleRTS: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "toggle RTS"),
		),
		Break: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "send break"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "h", "left"),
			key.WithHelp("←/h", "newer"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "l", "right"),
			key.WithHelp("→/l", "older"),
		),
	}
}

func (k WatchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Pause, k.ToggleDTR, k.ToggleRTS, k.Quit}
}

func (k WatchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ToggleDTR, k.ToggleRTS, k.Break},
		{k.Pause, k.Clear, k.PageUp, k.PageDown},
		{k.Help, k.Quit},
	}
}
