package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/feed"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/recorder"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

var (
	recordOut   string
	recordSpeed float64
	recordRate  string
)

var recordCmd = &cobra.Command{
	Use:   "record <scenario>",
	Short: "Record a scenario run to a file",
	Long: `Plays a scenario once and records every frame a live client would receive
to an NDJSON file, one frame per line. Use 'scenarios replay' to play it back.

Examples:
  fahrprobe scenarios record cyclist --out cyclist.ndjson
  fahrprobe scenarios record tram --out tram.ndjson --rate 20hz --speed 4`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Output file (required)")
	recordCmd.Flags().Float64Var(&recordSpeed, "speed", 0, "Playback speed multiplier (default from config)")
	recordCmd.Flags().StringVar(&recordRate, "rate", "10hz", "State frame rate while playing")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	def, err := registry.Get(args[0])
	if err != nil {
		return err
	}
	tickRate, err := parseTickRate(recordRate)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}

	rec, err := recorder.NewRecorder(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}
	defer rec.Close()

	fd := feed.New(registry, feed.Config{})
	sel := scenario.NewSelector(registry,
		scenario.WithClock(timeline.Scaled(timeline.RealClock{}, playbackSpeed(recordSpeed))),
		scenario.WithObserver(fd.Observe),
		scenario.WithSpeaker(fd.Speaker()),
	)
	defer sel.Close()

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📼 Recording Session Started\n\n")
	fmt.Fprintf(out, "Scenario:   %s\n", def.Title)
	fmt.Fprintf(out, "Output:     %s\n", recordOut)
	fmt.Fprintf(out, "Rate:       %s\n\n", recordRate)

	in, err := sel.Select(def.ID)
	if err != nil {
		return err
	}

	genCtx, stopGen := context.WithCancel(ctx)
	defer stopGen()
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	go fd.Generate(genCtx, ticker, sel)

	in.Play()
	if err := rec.RecordFromChannel(ctx, fd.Frames(), runFinished()); err != nil {
		return fmt.Errorf("recording error: %w", err)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(out, "Interrupted, recording is incomplete")
	}

	fmt.Fprintf(out, "✅ Recording complete: %d frames written to %s\n", rec.Count(), recordOut)
	return nil
}

// runFinished reports the first idle state frame that follows a playing
// one: the run has reached its final action.
func runFinished() func(models.Frame) bool {
	playing := false
	return func(f models.Frame) bool {
		if f.Kind != models.KindState || f.State == nil {
			return false
		}
		if f.State.Playing {
			playing = true
			return false
		}
		return playing && f.State.Status == string(scenario.StatusIdle)
	}
}
