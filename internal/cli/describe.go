package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/host"
)

var describeCmd = &cobra.Command{
	Use:   "describe <scenario>",
	Short: "Describe a scenario in detail",
	Long:  `Shows a scenario's description, its steps, the lines the examiner says and the attributes it animates.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	def, err := registry.Get(args[0])
	if err != nil {
		return fmt.Errorf("%w (try 'fahrprobe scenarios list')", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario: %s (%s)\n", headingStyle.Render(def.Title), def.ID)
	if def.NativeTitle != "" {
		fmt.Fprintf(out, "German:   %s\n", germanStyle.Render(def.NativeTitle))
	}
	fmt.Fprintf(out, "Severity: %s\n", host.SeverityBadge(def.Severity))
	fmt.Fprintf(out, "Duration: %.1fs\n\n", def.Duration().Seconds())
	if def.Description != "" {
		fmt.Fprintf(out, "%s\n\n", def.Description)
	}

	fmt.Fprintln(out, "Steps:")
	for i, step := range def.Steps {
		fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}

	if lines := def.Lines(); len(lines) > 0 {
		fmt.Fprintln(out, "\nExaminer says:")
		for _, line := range lines {
			fmt.Fprintf(out, "  %s\n", germanStyle.Render(line))
		}
	}

	fmt.Fprintln(out, "\nAttributes:")
	for _, attr := range def.Attributes {
		extra := ""
		if len(attr.Choices) > 0 {
			extra = " [" + strings.Join(attr.Choices, "|") + "]"
		}
		fmt.Fprintf(out, "  %-16s %-6s initial=%s%s\n", attr.Name, attr.Kind, attr.Initial, extra)
	}
	fmt.Fprintln(out)
	return nil
}
