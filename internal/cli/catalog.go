package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/catalog"
)

var (
	commandsCategories []string
	commandsTips       bool
	questionsCategory  string
	questionsAnswers   bool
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List examiner commands",
	Long: `Lists the commands an examiner gives during the drive, with their English
translation. Learned commands are ticked.

Examples:
  fahrprobe commands
  fahrprobe commands --category directions --category parking --tips`,
	Args: cobra.NoArgs,
	RunE: runCommands,
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List technical questions",
	Long: `Lists the technical questions asked before the drive. Answers are hidden
unless --answers is given.`,
	Args: cobra.NoArgs,
	RunE: runQuestions,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List command categories",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

var tipsCmd = &cobra.Command{
	Use:   "tips",
	Short: "Show local driving tips",
	Args:  cobra.NoArgs,
	RunE:  runTips,
}

func init() {
	commandsCmd.Flags().StringSliceVarP(&commandsCategories, "category", "c", nil, "Only show these categories")
	commandsCmd.Flags().BoolVar(&commandsTips, "tips", false, "Show the tip for each command")
	questionsCmd.Flags().StringVarP(&questionsCategory, "category", "c", catalog.AllQuestions, "Question category")
	questionsCmd.Flags().BoolVar(&questionsAnswers, "answers", false, "Show answers")
}

func runCommands(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	for _, key := range commandsCategories {
		if _, ok := cat.Category(key); !ok {
			return fmt.Errorf("unknown category %q (see 'fahrprobe categories')", key)
		}
	}
	learned, store, err := openLearned()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	group := ""
	for _, c := range cat.Commands(commandsCategories...) {
		if c.Category != group {
			group = c.Category
			meta, _ := cat.Category(group)
			fmt.Fprintf(out, "\n%s %s\n", meta.Icon, headingStyle.Render(meta.Name))
		}
		fmt.Fprintf(out, "  %s %s %-8s %s\n", learnedMark(learned.Has(c.ID)), importanceMark(c.Importance), c.ID, germanStyle.Render(c.German))
		fmt.Fprintf(out, "  %14s%s\n", "", dimStyle.Render(c.English))
		if commandsTips && c.Tip != "" {
			fmt.Fprintf(out, "  %14s💡 %s\n", "", c.Tip)
		}
	}
	fmt.Fprintf(out, "\n%s\n", progressLine("Learned", learned.Percent(cat.CommandCount())))
	return nil
}

func runQuestions(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	questions := cat.Questions(questionsCategory)
	if len(questions) == 0 {
		return fmt.Errorf("no questions in category %q (have: %v)", questionsCategory, cat.QuestionCategories())
	}

	out := cmd.OutOrStdout()
	for i, q := range questions {
		fmt.Fprintf(out, "%2d. [%s] %s\n", i+1, q.Category, germanStyle.Render(q.German))
		fmt.Fprintf(out, "    %s\n", dimStyle.Render(q.English))
		if questionsAnswers {
			fmt.Fprintf(out, "    → %s\n", q.Answer)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runCategories(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	counts := cat.CountByCategory()

	out := cmd.OutOrStdout()
	for _, c := range cat.Categories() {
		fmt.Fprintf(out, "%s %-12s %-22s %3d  %s\n", c.Icon, c.Key, c.Name, counts[c.Key], dimStyle.Render(c.Description))
	}
	return nil
}

func runTips(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, t := range cat.Tips() {
		fmt.Fprintf(out, "%s  %s\n", headingStyle.Render(t.Title), germanStyle.Render(t.German))
		fmt.Fprintf(out, "  %s\n\n", t.Body)
	}
	return nil
}
