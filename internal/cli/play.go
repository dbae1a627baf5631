package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/host"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

var (
	playSpeed float64
	playMute  bool
)

var playCmd = &cobra.Command{
	Use:   "play <scenario>",
	Short: "Play a scenario once in the terminal",
	Long: `Plays a scenario script from start to finish, printing each step as it
becomes active and reading the examiner's lines out loud.

Examples:
  fahrprobe scenarios play cyclist
  fahrprobe scenarios play tram --speed 2 --mute`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().Float64Var(&playSpeed, "speed", 0, "Playback speed multiplier (default from config)")
	playCmd.Flags().BoolVar(&playMute, "mute", false, "Do not read lines out loud")
}

// playbackSpeed prefers the flag value when it is set.
func playbackSpeed(flag float64) float64 {
	if flag > 0 {
		return flag
	}
	return current.Speed
}

func runPlay(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	def, err := registry.Get(args[0])
	if err != nil {
		return err
	}

	var speaker speech.Speaker = speech.Nop{}
	if !playMute {
		speaker = localSpeaker()
	}
	defer speaker.Stop()

	// One notification per script action plus the play itself.
	changes := make(chan scenario.Snapshot, len(def.Script)+4)
	in := scenario.NewInstance(def,
		scenario.WithClock(timeline.Scaled(timeline.RealClock{}, playbackSpeed(playSpeed))),
		scenario.WithSpeaker(speaker),
		scenario.WithObserver(func(snap scenario.Snapshot) {
			select {
			case changes <- snap:
			default:
			}
		}),
	)
	defer in.Close()

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n\n", headingStyle.Render(def.Title), germanStyle.Render(def.NativeTitle))

	in.Play()
	progress := &playProgress{def: def, step: -1}
	for {
		select {
		case <-ctx.Done():
			in.Reset()
			fmt.Fprintln(out, "\nStopped")
			return nil
		case snap := <-changes:
			progress.print(out, snap)
			if snap.Status == scenario.StatusIdle && !snap.Playing {
				waitForSpeech(speaker, 5*time.Second)
				fmt.Fprintf(out, "\n%s\n", host.Render(def, snap, host.DefaultOptions))
				return nil
			}
		}
	}
}

// playProgress prints step changes and spoken lines as a run advances.
type playProgress struct {
	def  *scenario.Definition
	step int
	said string
}

func (p *playProgress) print(w io.Writer, snap scenario.Snapshot) {
	at := float64(snap.ElapsedMS) / 1000
	if snap.CurrentStep != p.step && snap.CurrentStep < len(p.def.Steps) {
		p.step = snap.CurrentStep
		fmt.Fprintf(w, "[%5.1fs] ▶ %d. %s\n", at, p.step+1, p.def.Steps[p.step])
	}
	if snap.Said != "" && snap.Said != p.said {
		fmt.Fprintf(w, "[%5.1fs]   🔊 %s\n", at, germanStyle.Render(snap.Said))
	}
	p.said = snap.Said
}

func waitForSpeech(s speech.Speaker, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for s.IsSpeaking() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
}
