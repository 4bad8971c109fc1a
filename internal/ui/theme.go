package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
	cCrystal = lipgloss.Color("51")  // cyan
)

var (
	Title   = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2      = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted   = lipgloss.NewStyle().Foreground(cMuted)
	Key     = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good    = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn    = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad     = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold    = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	Crystal = lipgloss.NewStyle().Bold(true).Foreground(cCrystal)

	Panel       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
	SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(cGold)
)

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// Luck renders the luck counters of a log row, empty when none fired.
func Luck(luck2, luck3 int) string {
	var parts []string
	if luck2 > 0 {
		parts = append(parts, Gold.Render(fmt.Sprintf("x2·%d", luck2)))
	}
	if luck3 > 0 {
		parts = append(parts, Crystal.Render(fmt.Sprintf("x3·%d", luck3)))
	}
	return strings.Join(parts, " ")
}

// Pool renders a wallet pool tag in its color.
func Pool(target string) string {
	switch target {
	case "daily":
		return Good.Render(target)
	case "weekend":
		return H2.Render(target)
	case "crystal":
		return Crystal.Render(target)
	default:
		return Muted.Render(target)
	}
}
