package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/host"
)

var scenariosCmd = &cobra.Command{
	Use:     "scenarios",
	Aliases: []string{"scenario"},
	Short:   "Animated walkthroughs of critical exam situations",
	Long:    `Commands for listing, playing, recording and replaying scenario walkthroughs.`,
}

var listScenariosCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenarios",
	Long:  `Lists all built-in scenarios, and any loaded from --scenarios, with their severity.`,
	Args:  cobra.NoArgs,
	RunE:  runListScenarios,
}

func init() {
	scenariosCmd.AddCommand(listScenariosCmd)
	scenariosCmd.AddCommand(describeCmd)
	scenariosCmd.AddCommand(playCmd)
	scenariosCmd.AddCommand(watchCmd)
	scenariosCmd.AddCommand(recordCmd)
	scenariosCmd.AddCommand(replayCmd)
}

func runListScenarios(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	defs := registry.Definitions()
	out := cmd.OutOrStdout()
	if len(defs) == 0 {
		fmt.Fprintln(out, "No scenarios found")
		return nil
	}

	fmt.Fprintln(out, "Available scenarios:")
	fmt.Fprintln(out)
	for _, def := range defs {
		fmt.Fprintf(out, "  %-16s %-32s %s\n", def.ID, def.Title, host.SeverityBadge(def.Severity))
		if def.Blurb != "" {
			fmt.Fprintf(out, "  %-16s %s\n", "", dimStyle.Render(def.Blurb))
		}
	}
	fmt.Fprintln(out)
	return nil
}
