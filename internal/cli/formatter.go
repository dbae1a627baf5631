package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/fahrprobe/fahrprobe-cli/internal/catalog"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	germanStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func disableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func renderBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// progressLine renders "label  ████░░░░  42%".
func progressLine(label string, percent int) string {
	return fmt.Sprintf("%-10s %s %3d%%", label, renderBar(float64(percent)/100, 20), percent)
}

func importanceMark(i catalog.Importance) string {
	switch i {
	case catalog.ImportanceCritical:
		return failStyle.Render("!!")
	case catalog.ImportanceHigh:
		return warnStyle.Render("! ")
	default:
		return "  "
	}
}

func learnedMark(learned bool) string {
	if learned {
		return okStyle.Render("✓")
	}
	return dimStyle.Render("·")
}
