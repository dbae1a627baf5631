// Package host renders a scenario snapshot for the terminal: the plane with
// its entities, the indicator panel and the step checklist.
//
// Everything here is a pure function of a definition and a snapshot.
package host

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
)

// StepState is how a step is highlighted in the checklist.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepActive    StepState = "active"
	StepPending   StepState = "pending"
)

// StepStatus classifies step i against the current step.
func StepStatus(i, current int) StepState {
	switch {
	case i < current:
		return StepCompleted
	case i == current:
		return StepActive
	default:
		return StepPending
	}
}

// StepLine is one row of the checklist.
type StepLine struct {
	Index   int
	Caption string
	State   StepState
}

// Steps builds the checklist. A current step outside the declared captions
// is clamped into [0, len(steps)], so a step past the end marks every
// caption completed.
func Steps(def *scenario.Definition, snap scenario.Snapshot) []StepLine {
	current := ClampStep(snap.CurrentStep, len(def.Steps))
	lines := make([]StepLine, len(def.Steps))
	for i, caption := range def.Steps {
		lines[i] = StepLine{Index: i, Caption: caption, State: StepStatus(i, current)}
	}
	return lines
}

// ClampStep clamps step into [0, n].
func ClampStep(step, n int) int {
	if step < 0 {
		return 0
	}
	if step > n {
		return n
	}
	return step
}

// SeverityBadge returns the label shown next to a scenario title.
func SeverityBadge(s scenario.Severity) string {
	switch s {
	case scenario.SeverityCritical:
		return "⚠️ Critical"
	case scenario.SeverityHigh:
		return "❗ Important"
	default:
		return "ℹ️ Good to know"
	}
}

// Surface draws the 0-100 plane into a width x height character grid.
// Entities off the plane, or hidden by their flag, are not drawn.
func Surface(def *scenario.Definition, snap scenario.Snapshot, width, height int) []string {
	if width < 2 || height < 2 {
		return nil
	}
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	for _, attr := range def.Attributes {
		if !attr.Entity() || !visible(attr, snap) {
			continue
		}
		pos, _ := snap.Value(attr.Name).Position()
		if !pos.OnPlane() {
			continue
		}
		col := int(math.Round(pos.X / 100 * float64(width-1)))
		row := int(math.Round(pos.Y / 100 * float64(height-1)))
		grid[row][col] = glyph(attr, snap)
	}

	rows := make([]string, height)
	for i, r := range grid {
		rows[i] = string(r)
	}
	return rows
}

func visible(attr scenario.Attribute, snap scenario.Snapshot) bool {
	if attr.ShownBy == "" {
		return true
	}
	return snap.Value(attr.ShownBy).Flag
}

func glyph(attr scenario.Attribute, snap scenario.Snapshot) rune {
	if attr.Heading != "" {
		return arrow(snap.Value(attr.Heading).Number)
	}
	for _, r := range attr.Glyph {
		return r
	}
	return '*'
}

// arrow picks the closest of eight direction glyphs for a heading in
// degrees, 0 pointing up.
func arrow(deg float64) rune {
	arrows := []rune{'^', '/', '>', '\\', 'v', '/', '<', '\\'}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return arrows[int(math.Round(deg/45))%len(arrows)]
}

// Indicator is a non-positional attribute formatted for display.
type Indicator struct {
	Name  string
	Label string
	Text  string
	On    bool
}

// Indicators lists flags, gauges and choices in declaration order.
func Indicators(def *scenario.Definition, snap scenario.Snapshot) []Indicator {
	var out []Indicator
	for _, attr := range def.Attributes {
		if attr.Entity() {
			continue
		}
		v := snap.Value(attr.Name)
		ind := Indicator{Name: attr.Name, Label: attr.Label}
		switch attr.Kind {
		case scenario.KindFlag:
			ind.On = v.Flag
			ind.Text = v.String()
		case scenario.KindNumber:
			ind.Text = strings.TrimSpace(v.String() + " " + attr.Unit)
			ind.On = v.Number != 0
		case scenario.KindChoice:
			ind.Text = v.Choice
			ind.On = true
		}
		out = append(out, ind)
	}
	return out
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	nativeStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	highStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	planeStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	saidStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
)

// Options controls the size of the rendered panel.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions fits an 80 column terminal.
var DefaultOptions = Options{Width: 48, Height: 16}

// Render draws the full scenario panel.
func Render(def *scenario.Definition, snap scenario.Snapshot, opts Options) string {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(def.Title))
	if def.NativeTitle != "" {
		b.WriteString("  " + nativeStyle.Render(def.NativeTitle))
	}
	b.WriteString("\n")
	b.WriteString(badgeStyle(def.Severity).Render(SeverityBadge(def.Severity)))
	b.WriteString("\n\n")

	plane := planeStyle.Render(strings.Join(Surface(def, snap, opts.Width, opts.Height), "\n"))
	panel := lipgloss.JoinVertical(lipgloss.Left, renderIndicators(Indicators(def, snap))...)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, plane, "  ", panel))
	b.WriteString("\n")

	if snap.Said != "" && snap.Playing {
		b.WriteString(saidStyle.Render(fmt.Sprintf("🔊 %s", snap.Said)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, line := range Steps(def, snap) {
		b.WriteString(renderStep(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(statusLine(def, snap)))
	return b.String()
}

func badgeStyle(s scenario.Severity) lipgloss.Style {
	switch s {
	case scenario.SeverityCritical:
		return criticalStyle
	case scenario.SeverityHigh:
		return highStyle
	default:
		return mediumStyle
	}
}

func renderIndicators(inds []Indicator) []string {
	out := make([]string, 0, len(inds))
	for _, ind := range inds {
		mark, style := "○", offStyle
		if ind.On {
			mark, style = "●", onStyle
		}
		out = append(out, style.Render(fmt.Sprintf("%s %s: %s", mark, ind.Label, ind.Text)))
	}
	return out
}

func renderStep(line StepLine) string {
	text := fmt.Sprintf("%d. %s", line.Index+1, line.Caption)
	switch line.State {
	case StepCompleted:
		return "✓ " + doneStyle.Render(text)
	case StepActive:
		return "▶ " + activeStyle.Render(text)
	default:
		return "  " + text
	}
}

func statusLine(def *scenario.Definition, snap scenario.Snapshot) string {
	step := ClampStep(snap.CurrentStep, len(def.Steps))
	if step < len(def.Steps) {
		step++
	}
	return fmt.Sprintf("%s · step %d/%d · %.1fs/%.1fs",
		snap.Status, step, len(def.Steps),
		float64(snap.ElapsedMS)/1000, def.Duration().Seconds())
}
