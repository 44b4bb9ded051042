package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the TUI. Form fields take printable
// keys, so actions live on control and function keys.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Next        key.Binding
	Prev        key.Binding
	Select      key.Binding
	Back        key.Binding
	Quit        key.Binding
	Help        key.Binding
	Refresh     key.Binding
	Program     key.Binding
	SetSerial   key.Binding
	Search      key.Binding
	Prefill     key.Binding
	ResetDevice key.Binding
	Logout      key.Binding
	ClearLog    key.Binding
	Confirm     key.Binding
	Deny        key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "down"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh ports"),
		),
		Program: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "program"),
		),
		SetSerial: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new serial"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "history"),
		),
		Prefill: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "fill from last"),
		),
		ResetDevice: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "reset device"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "logout"),
		),
		ClearLog: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear log"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "yes"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "no"),
		),
	}
}

// ShortHelp returns keybindings to show in the help view (horizontal).
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Program, k.SetSerial, k.Search, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Next, k.Prev, k.Select, k.Back},
		{k.Program, k.SetSerial, k.Search, k.Prefill, k.Refresh},
		{k.ResetDevice, k.Logout, k.ClearLog, k.Help, k.Quit},
	}
}
