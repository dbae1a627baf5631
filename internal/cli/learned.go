package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
)

var learnedOut string

var learnedCmd = &cobra.Command{
	Use:   "learned",
	Short: "Track which commands you have learned",
	Long:  `Shows and changes the set of commands marked as learned. Progress is stored in the local database.`,
}

var learnedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned commands and overall progress",
	Args:  cobra.NoArgs,
	RunE:  runLearnedList,
}

var learnedToggleCmd = &cobra.Command{
	Use:   "toggle <command-id>...",
	Short: "Mark commands as learned, or unmark them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLearnedToggle,
}

var learnedExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export learned commands to a JSON file",
	Args:  cobra.NoArgs,
	RunE:  runLearnedExport,
}

var learnedImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge learned commands from an export file",
	Long: `Merges the learned commands from a file written by 'learned export' into
the local set. Ids that are not in the catalog are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runLearnedImport,
}

func init() {
	learnedExportCmd.Flags().StringVarP(&learnedOut, "out", "o", "", "Output file (stdout if not set)")

	learnedCmd.AddCommand(learnedListCmd)
	learnedCmd.AddCommand(learnedToggleCmd)
	learnedCmd.AddCommand(learnedExportCmd)
	learnedCmd.AddCommand(learnedImportCmd)
}

func runLearnedList(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	learned, store, err := openLearned()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	for _, id := range learned.IDs() {
		if c, ok := cat.Command(id); ok {
			fmt.Fprintf(out, "%s %-8s %s\n", learnedMark(true), id, germanStyle.Render(c.German))
		}
	}
	fmt.Fprintf(out, "\n%s  (%d of %d)\n", progressLine("Learned", learned.Percent(cat.CommandCount())),
		len(cat.Known(learned.IDs())), cat.CommandCount())
	return nil
}

func runLearnedToggle(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	for _, id := range args {
		if _, ok := cat.Command(id); !ok {
			return fmt.Errorf("unknown command id %q (see 'fahrprobe commands')", id)
		}
	}
	learned, store, err := openLearned()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	for _, id := range args {
		now, err := learned.Toggle(id)
		if err != nil {
			return err
		}
		c, _ := cat.Command(id)
		fmt.Fprintf(out, "%s %-8s %s\n", learnedMark(now), id, c.German)
	}
	return nil
}

func runLearnedExport(cmd *cobra.Command, args []string) error {
	learned, store, err := openLearned()
	if err != nil {
		return err
	}
	defer store.Close()

	export := models.NewProgressExport(uuid.New().String(), models.ExportDevice{
		Platform:   runtime.GOOS,
		AppVersion: Version,
	}, learned.IDs())
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	if learnedOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(learnedOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d learned commands to %s\n", len(export.Learned), learnedOut)
	return nil
}

func runLearnedImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	var export models.ProgressExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := export.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	learned, store, err := openLearned()
	if err != nil {
		return err
	}
	defer store.Close()

	known := cat.Known(export.Learned)
	added, err := learned.Merge(known)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new of %d learned commands", added, len(export.Learned))
	if skipped := len(export.Learned) - len(known); skipped > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d unknown skipped)", skipped)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
