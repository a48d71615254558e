package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Color palette
const (
	ColorHeader  = "252"
	ColorCreate  = "82"
	ColorUpdate  = "214"
	ColorReplace = "213"
	ColorDestroy = "203"
	ColorID      = "214"
	ColorName    = "81"
	ColorMuted   = "240"
	ColorHint    = "245"
	ColorOK      = "82"
	ColorBad     = "203"
)

// Shared styles
var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorHeader))
	CreateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCreate))
	UpdateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorUpdate))
	ReplaceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorReplace))
	DestroyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDestroy))
	IDStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorID))
	NameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorName))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
	HintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorHint))
	OKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOK))
	BadStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBad))
)

// padRight pads a string to the specified display width using runewidth
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-sw)
}
