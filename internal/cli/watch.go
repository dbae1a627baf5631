package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/host"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

var (
	watchSpeed float64
	watchMute  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [scenario]",
	Short: "Interactive scenario viewer",
	Long: `Opens a full-screen viewer that animates scenarios.

Keys:
  space    play / pause
  r        reset
  ← →      previous / next scenario
  q        quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Float64Var(&watchSpeed, "speed", 0, "Playback speed multiplier (default from config)")
	watchCmd.Flags().BoolVar(&watchMute, "mute", false, "Do not read lines out loud")
}

func runWatch(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	opts := []scenario.Option{
		scenario.WithClock(timeline.Scaled(timeline.RealClock{}, playbackSpeed(watchSpeed))),
	}
	if !watchMute {
		speaker := localSpeaker()
		defer speaker.Stop()
		opts = append(opts, scenario.WithSpeaker(speaker))
	}
	sel := scenario.NewSelector(registry, opts...)
	defer sel.Close()

	start := ""
	if len(args) == 1 {
		start = args[0]
	}
	m, err := newWatchModel(sel, start)
	if err != nil {
		return err
	}

	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(cmd.OutOrStdout())).Run()
	return err
}

const watchRefresh = 100 * time.Millisecond

type watchTickMsg time.Time

func watchTick() tea.Cmd {
	return tea.Tick(watchRefresh, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

// watchModel polls the active instance on a tick. Instance observers run
// under the instance lock, so the view never waits on them.
type watchModel struct {
	sel   *scenario.Selector
	ids   []string
	index int
	opts  host.Options
}

func newWatchModel(sel *scenario.Selector, start string) (*watchModel, error) {
	m := &watchModel{sel: sel, ids: sel.Registry().List(), opts: host.DefaultOptions}
	if len(m.ids) == 0 {
		return nil, fmt.Errorf("no scenarios to watch")
	}
	if start != "" {
		i := slices.Index(m.ids, start)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", scenario.ErrNotFound, start)
		}
		m.index = i
	}
	if _, err := sel.Select(m.ids[m.index]); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.sel.Close()
			return m, tea.Quit
		case " ", "enter", "p":
			m.sel.Active().Toggle()
		case "r":
			m.sel.Active().Reset()
		case "right", "l", "n", "tab":
			m.move(1)
		case "left", "h", "b", "shift+tab":
			m.move(-1)
		}
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case watchTickMsg:
		return m, watchTick()
	}
	return m, nil
}

// move selects the neighbouring scenario, wrapping around. The selector
// resets the one being left.
func (m *watchModel) move(delta int) {
	next := (m.index + delta + len(m.ids)) % len(m.ids)
	if _, err := m.sel.Select(m.ids[next]); err == nil {
		m.index = next
	}
}

func (m *watchModel) resize(width, height int) {
	// room for the indicator panel and the step list
	w := min(max(width-44, 20), 80)
	h := min(max(height-22, 8), 30)
	m.opts = host.Options{Width: w, Height: h}
}

func (m *watchModel) View() string {
	in := m.sel.Active()
	if in == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteString("\n\n")
	b.WriteString(host.Render(in.Definition(), in.Snapshot(), m.opts))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("space play/pause · r reset · ←/→ scenario · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *watchModel) tabs() string {
	parts := make([]string, len(m.ids))
	for i, id := range m.ids {
		if i == m.index {
			parts[i] = headingStyle.Render("[" + id + "]")
		} else {
			parts[i] = dimStyle.Render(" " + id + " ")
		}
	}
	return strings.Join(parts, " ")
}
