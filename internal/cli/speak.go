package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
)

var speakCmd = &cobra.Command{
	Use:   "speak <text | command-id>",
	Short: "Read a German phrase out loud",
	Long: `Reads text out loud with the local speech engine. A command id from the
catalog is replaced by the command's German text.

Examples:
  fahrprobe speak dir-1
  fahrprobe speak "Parken Sie bitte rückwärts ein."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpeak,
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if cat, err := loadCatalog(); err == nil {
		if c, ok := cat.Command(text); ok {
			text = c.German
		}
	}

	speaker := localSpeaker()
	if _, ok := speaker.(speech.Nop); ok {
		return fmt.Errorf("no speech engine available (see 'fahrprobe doctor')")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "🔊 %s\n", germanStyle.Render(text))
	speaker.Speak(text, nil)

	ctx, cancel := signalContext()
	defer cancel()

	// A failed engine never reports completion, so poll instead.
	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()
	deadline := time.After(time.Minute)
	for speaker.IsSpeaking() {
		select {
		case <-ctx.Done():
			speaker.Stop()
			return nil
		case <-deadline:
			speaker.Stop()
			return nil
		case <-poll.C:
		}
	}
	return nil
}
