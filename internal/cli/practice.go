package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/catalog"
	"github.com/fahrprobe/fahrprobe-cli/internal/practice"
	"github.com/fahrprobe/fahrprobe-cli/internal/progress"
)

var (
	practiceCategories  []string
	practiceQuestions   bool
	practiceMarkLearned bool
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Listening drill over exam commands",
	Long: `Reads random exam commands out loud in German. Say what you would do,
reveal the translation, then mark whether you understood it.

Keys:
  space    reveal translation (or start)
  y / n    understood / not understood, next command
  r        read out again
  x        reset score
  q        quit

Examples:
  fahrprobe practice
  fahrprobe practice --category directions --category emergency
  fahrprobe practice --questions`,
	Args: cobra.NoArgs,
	RunE: runPractice,
}

func init() {
	practiceCmd.Flags().StringSliceVarP(&practiceCategories, "category", "c", nil, "Only practice these command categories")
	practiceCmd.Flags().BoolVar(&practiceQuestions, "questions", false, "Drill technical questions instead of commands")
	practiceCmd.Flags().BoolVar(&practiceMarkLearned, "mark-learned", false, "Mark commands you understood as learned")
}

func runPractice(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	pool := practicePool(cat, practiceCategories, practiceQuestions)
	if len(pool) == 0 {
		return fmt.Errorf("nothing to practice for categories %v", practiceCategories)
	}

	speaker := localSpeaker()
	defer speaker.Stop()
	ctrl := practice.New(pool,
		practice.WithSpeaker(speaker),
		practice.WithSpeakDelay(current.SpeakDelay),
	)

	m := &practiceModel{ctrl: ctrl}
	if practiceMarkLearned && !practiceQuestions {
		learned, store, err := openLearned()
		if err != nil {
			return err
		}
		defer store.Close()
		m.learned = learned
	}

	final, err := tea.NewProgram(m, tea.WithOutput(cmd.OutOrStdout())).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(*practiceModel); ok && fm.err != nil {
		return fm.err
	}
	snap := ctrl.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Session: %d/%d understood (%d%%)\n", snap.Correct, snap.Total, snap.Accuracy())
	return nil
}

// practicePool builds drill items from commands in categories, or from
// every technical question.
func practicePool(cat *catalog.Catalog, categories []string, questions bool) []practice.Item {
	var pool []practice.Item
	if questions {
		for _, q := range cat.Questions(catalog.AllQuestions) {
			pool = append(pool, practice.Item{
				ID:          q.ID,
				Text:        q.German,
				Translation: q.English,
				Category:    q.Category,
				Tip:         q.Answer,
			})
		}
		return pool
	}
	for _, c := range cat.Commands(categories...) {
		pool = append(pool, practice.Item{
			ID:          c.ID,
			Text:        c.German,
			Translation: c.English,
			Category:    c.Category,
			Tip:         c.Tip,
		})
	}
	return pool
}

type practiceModel struct {
	ctrl    *practice.Controller
	learned *progress.LearnedSet
	err     error
}

func (m *practiceModel) Init() tea.Cmd {
	m.ctrl.Start()
	return nil
}

func (m *practiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "esc", "ctrl+c":
		m.ctrl.Reset()
		return m, tea.Quit
	case " ", "enter":
		if m.ctrl.Snapshot().Phase == practice.PhaseIdle {
			m.ctrl.Start()
		} else {
			m.ctrl.Reveal()
		}
	case "y":
		if err := m.markLearned(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.ctrl.MarkKnown()
	case "n":
		m.ctrl.MarkUnknown()
	case "r":
		m.ctrl.Replay()
	case "x":
		m.ctrl.Reset()
	}
	return m, nil
}

func (m *practiceModel) markLearned() error {
	if m.learned == nil {
		return nil
	}
	snap := m.ctrl.Snapshot()
	if snap.Current == nil || snap.Phase == practice.PhaseIdle {
		return nil
	}
	return m.learned.Add(snap.Current.ID)
}

func (m *practiceModel) View() string {
	snap := m.ctrl.Snapshot()
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %d/%d understood (%d%%)\n", headingStyle.Render("Practice"), snap.Correct, snap.Total, snap.Accuracy())
	fmt.Fprintf(&b, "%s  (%d of %d this round)\n\n", progressLine("Coverage", snap.Coverage()), snap.Practiced, snap.Available)

	switch {
	case snap.Empty:
		b.WriteString(warnStyle.Render("Nothing to practice."))
		b.WriteString("\n")
	case snap.Current == nil:
		b.WriteString("Press space to start.\n")
	default:
		item := snap.Current
		fmt.Fprintf(&b, "🔊 %s\n", germanStyle.Render(item.Text))
		if snap.Phase == practice.PhaseRevealed {
			fmt.Fprintf(&b, "   %s\n", item.Translation)
			if item.Tip != "" {
				fmt.Fprintf(&b, "   💡 %s\n", dimStyle.Render(item.Tip))
			}
		} else {
			b.WriteString(dimStyle.Render("   (space to reveal)"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("space reveal · y understood · n not yet · r repeat · x reset · q quit"))
	b.WriteString("\n")
	return b.String()
}
