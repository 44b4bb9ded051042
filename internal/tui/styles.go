package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains all the lipgloss styles for the TUI.
type Styles struct {
	// App
	App lipgloss.Style

	// Title
	Title    lipgloss.Style
	TitleBar lipgloss.Style
	Subtitle lipgloss.Style
	Section  lipgloss.Style

	// Lists
	MenuItem         lipgloss.Style
	MenuItemSelected lipgloss.Style
	MenuItemDim      lipgloss.Style

	// Status
	StatusOnline  lipgloss.Style
	StatusOffline lipgloss.Style

	// Content
	Label     lipgloss.Style
	Value     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style

	// Controls
	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style
	Card           lipgloss.Style
	CardSelected   lipgloss.Style
	LogBox         lipgloss.Style
	Dialog         lipgloss.Style

	// Help
	Help lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special := lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	dim := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	text := lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}
	danger := lipgloss.Color("#FF6B6B")

	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(highlight).
			Padding(0, 1),

		TitleBar: lipgloss.NewStyle().
			Foreground(text).
			Background(subtle).
			Padding(0, 1).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(dim),

		Section: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			MarginTop(1),

		MenuItem: lipgloss.NewStyle(),

		MenuItemSelected: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		MenuItemDim: lipgloss.NewStyle().
			Foreground(dim).
			PaddingLeft(4),

		StatusOnline: lipgloss.NewStyle().
			Foreground(special).
			Bold(true),

		StatusOffline: lipgloss.NewStyle().
			Foreground(danger).
			Bold(true),

		Label: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}).
			Width(24),

		Value: lipgloss.NewStyle().
			Foreground(text),

		Highlight: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(dim),

		Error: lipgloss.NewStyle().
			Foreground(danger),

		Success: lipgloss.NewStyle().
			Foreground(special),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00")),

		Button: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(highlight).
			Padding(0, 2).
			MarginTop(1),

		ButtonDisabled: lipgloss.NewStyle().
			Foreground(dim).
			Background(subtle).
			Padding(0, 2).
			MarginTop(1),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1),

		CardSelected: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1),

		LogBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(subtle).
			MarginTop(1),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1, 2),

		Help: lipgloss.NewStyle().
			Foreground(dim).
			MarginTop(1),
	}
}
