package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/encoding"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/recorder"
	"github.com/fahrprobe/fahrprobe-cli/internal/transport"
)

var (
	replayIn     string
	replaySpeed  float64
	replayLoop   bool
	replayServe  bool
	replayHost   string
	replayPort   int
	replayFormat string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded scenario run",
	Long: `Replays frames from a file written by 'scenarios record', keeping the
original timing. With --serve the frames are also broadcast to WebSocket
clients, so a browser front end can be driven from a recording.

Examples:
  fahrprobe scenarios replay --in cyclist.ndjson
  fahrprobe scenarios replay --in tram.ndjson --speed 2 --loop --serve`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayIn, "in", "", "Input file to replay (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayLoop, "loop", false, "Loop playback continuously")
	replayCmd.Flags().BoolVar(&replayServe, "serve", false, "Broadcast frames over WebSocket")
	replayCmd.Flags().StringVar(&replayHost, "host", "", "Host to bind to (default from config)")
	replayCmd.Flags().IntVar(&replayPort, "port", 0, "Port to listen on (default from config)")
	replayCmd.Flags().StringVar(&replayFormat, "format", "json", "WebSocket frame encoding: json|protobuf")
	replayCmd.MarkFlagRequired("in")
}

func runReplay(cmd *cobra.Command, args []string) error {
	rep := recorder.NewReplayer(replayIn, replaySpeed, replayLoop)

	count, err := rep.CountFrames()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	first, err := rep.GetFirstFrame()
	if err != nil {
		return fmt.Errorf("failed to read first frame: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	frames := make(chan models.Frame, 100)
	dispatcher := transport.NewDispatcher(frames, 100)
	printed := dispatcher.Subscribe()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "▶️  Replay Session Started\n\n")
	fmt.Fprintf(out, "File:         %s\n", replayIn)
	fmt.Fprintf(out, "Frames:       %d\n", count)
	fmt.Fprintf(out, "Scenario:     %s\n", first.Session.Scenario)
	fmt.Fprintf(out, "Speed:        %.1fx\n", replaySpeed)
	fmt.Fprintf(out, "Loop:         %v\n", replayLoop)

	if replayServe {
		format, err := encoding.ParseFormat(replayFormat)
		if err != nil {
			return err
		}
		host, port := replayHost, replayPort
		if host == "" {
			host = current.Host
		}
		if port == 0 {
			port = current.Port
		}
		// replayed sessions are read-only
		ws := transport.NewWebSocketServer(host, port, encoding.NewEncoder(format), nil)
		go func() {
			if err := ws.Start(ctx); err != nil {
				slog.Error("WebSocket server error", "error", err)
			}
		}()
		go ws.BroadcastFromChannel(ctx, dispatcher.Subscribe())
		fmt.Fprintf(out, "WebSocket:    %s\n", ws.GetAddress())
	}
	fmt.Fprintln(out)

	go dispatcher.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range printed {
			printFrame(out, frame)
		}
	}()

	err = rep.Replay(ctx, frames)
	close(frames)
	<-done
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("replay error: %w", err)
	}

	fmt.Fprintln(out, "\nReplay complete")
	return nil
}

func printFrame(w io.Writer, f models.Frame) {
	switch f.Kind {
	case models.KindSpeak:
		if f.Speech != nil {
			fmt.Fprintf(w, "#%-5d 🔊 %s\n", f.Meta.Sequence, germanStyle.Render(f.Speech.Text))
		}
	case models.KindState:
		if s := f.State; s != nil {
			fmt.Fprintf(w, "#%-5d %-8s step %d/%d  %6.1fs\n",
				f.Meta.Sequence, s.Status, min(s.CurrentStep+1, s.Steps), s.Steps, float64(s.ElapsedMS)/1000)
		}
	}
}
