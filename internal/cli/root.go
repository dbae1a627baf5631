package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "fahrprobe",
	Short: "Fahrprobe - study aid for the German practical driving exam",
	Long: `Fahrprobe helps you prepare for the practical driving exam in Germany.

It lists the commands an examiner gives during the drive, the technical
questions asked beforehand, animated walkthroughs of the situations people
most often fail, and local tips. Commands are read out in German when a
speech engine is installed, and learning progress is stored locally.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalOpts.ConfigPath, "config", "", "Config file (default $FAHRPROBE_CONFIG or ~/.config/fahrprobe/config.yaml)")
	flags.StringVar(&globalOpts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.StringVar(&globalOpts.DataPath, "data", "", "Progress database path")
	flags.StringVar(&globalOpts.ScenarioDir, "scenarios", "", "Extra directory of scenario definitions")
	flags.StringVar(&globalOpts.Speech, "speech", "", `Speech command ("off" to disable, {text} is replaced)`)
	flags.BoolVar(&globalOpts.NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(tipsCmd)
	rootCmd.AddCommand(learnedCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and installs the default logger before
// any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	if globalOpts.NoColor {
		disableColor()
	}
	current = cfg
	return nil
}
