package tui

import "github.com/charmbracelet/lipgloss"

// Style slots used by the cell grid.
const (
	stylePlain = iota
	styleCard
	styleAccent
	styleFaint
	styleFocused
	styleDragging
	styleCount
)

var (
	colorCard    = lipgloss.AdaptiveColor{Light: "236", Dark: "252"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "166", Dark: "214"}
	colorFaint   = lipgloss.AdaptiveColor{Light: "250", Dark: "240"}
	colorFocused = lipgloss.AdaptiveColor{Light: "25", Dark: "81"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	colorError   = lipgloss.Color("196")
)

type styles struct {
	cells []lipgloss.Style

	panel      lipgloss.Style
	panelTitle lipgloss.Style
	muted      lipgloss.Style
	status     lipgloss.Style
	errorBox   lipgloss.Style
}

func defaultStyles() styles {
	cells := make([]lipgloss.Style, styleCount)
	cells[stylePlain] = lipgloss.NewStyle()
	cells[styleCard] = lipgloss.NewStyle().Foreground(colorCard)
	cells[styleAccent] = lipgloss.NewStyle().Foreground(colorAccent)
	cells[styleFaint] = lipgloss.NewStyle().Foreground(colorFaint).Faint(true)
	cells[styleFocused] = lipgloss.NewStyle().Foreground(colorFocused).Bold(true)
	cells[styleDragging] = lipgloss.NewStyle().Foreground(colorFocused).Italic(true)

	return styles{
		cells: cells,
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(colorMuted).
			PaddingLeft(1),
		panelTitle: lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		muted:      lipgloss.NewStyle().Foreground(colorMuted),
		status:     lipgloss.NewStyle().Foreground(colorMuted),
		errorBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(1, 2),
	}
}
