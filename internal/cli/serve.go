package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/api"
	"github.com/fahrprobe/fahrprobe-cli/internal/encoding"
	"github.com/fahrprobe/fahrprobe-cli/internal/feed"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/recorder"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
	"github.com/fahrprobe/fahrprobe-cli/internal/transport"
)

var (
	serveHost     string
	servePort     int
	serveToken    string
	serveGzip     bool
	serveFormat   string
	serveUDPPort  int
	serveRate     string
	serveOut      string
	serveMute     bool
	serveScenario string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local server for browser and app front ends",
	Long: `Starts a local HTTP server exposing the catalog, learned progress and the
scenario player. Scenario frames are pushed to clients over WebSocket (/ws)
and Server-Sent Events (/sse), and optionally over UDP. WebSocket clients can
send control messages such as {"action":"select","scenario":"tram"}.

When binding to a non-loopback address without --token, a token is
generated and required on every state-changing request.

Examples:
  fahrprobe serve
  fahrprobe serve --scenario cyclist --format protobuf
  fahrprobe serve --host 0.0.0.0 --token mysecret --udp-port 8790 --out session.ndjson`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Static bearer token")
	serveCmd.Flags().BoolVar(&serveGzip, "gzip", false, "Accept gzip-compressed progress imports")
	serveCmd.Flags().StringVar(&serveFormat, "format", "json", "WebSocket and UDP frame encoding: json|protobuf")
	serveCmd.Flags().IntVar(&serveUDPPort, "udp-port", 0, "Also broadcast frames over UDP on this port")
	serveCmd.Flags().StringVar(&serveRate, "rate", "10hz", "State frame rate while a scenario plays")
	serveCmd.Flags().StringVar(&serveOut, "out", "", "Record every frame to this file")
	serveCmd.Flags().BoolVar(&serveMute, "mute", false, "Do not read lines out loud on this machine")
	serveCmd.Flags().StringVar(&serveScenario, "scenario", "", "Scenario to select on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	host, port, token := current.Host, current.Port, current.Token
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}
	if serveToken != "" {
		token = serveToken
	}
	if token == "" && !isLoopback(host) {
		generated, err := generateToken()
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		token = generated
	}

	format, err := encoding.ParseFormat(serveFormat)
	if err != nil {
		return err
	}
	tickRate, err := parseTickRate(serveRate)
	if err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}

	registry, err := loadRegistry()
	if err != nil {
		return err
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

	// Connected clients are told what to say; this machine speaks too
	// unless muted.
	fd := feed.New(registry, feed.Config{})
	speakers := speech.Multi{fd.Speaker()}
	if !serveMute {
		speakers = append(speakers, localSpeaker())
	}
	defer speakers.Stop()

	sel := scenario.NewSelector(registry,
		scenario.WithClock(timeline.Scaled(timeline.RealClock{}, current.Speed)),
		scenario.WithSpeaker(speakers),
		scenario.WithObserver(fd.Observe),
	)
	defer sel.Close()

	srv := api.NewServer(api.Config{
		Host:       host,
		Port:       port,
		Token:      token,
		AcceptGzip: serveGzip,
		Version:    Version,
	}, sel, cat, learned)

	enc := encoding.NewEncoder(format)
	ws := transport.NewWebSocketServer(host, port, enc, srv.ApplyControl)
	ws.OnConnect(func() (models.Frame, bool) {
		in := sel.Active()
		if in == nil {
			return models.Frame{}, false
		}
		return fd.StateFrame(in.Snapshot()), true
	})
	sse := transport.NewSSEServer(host, port, enc)
	srv.Mount(transport.WebSocketPath, ws.Handler())
	srv.Mount(transport.SSEPath, sse.Handler())

	ctx, cancel := signalContext()
	defer cancel()

	// Long-lived streams must end before the HTTP server can drain.
	stopStreams := context.AfterFunc(ctx, func() {
		ws.Shutdown()
		sse.Shutdown()
	})
	defer stopStreams()

	dispatcher := transport.NewDispatcher(fd.Frames(), 100)
	go ws.BroadcastFromChannel(ctx, dispatcher.Subscribe())
	go sse.BroadcastFromChannel(ctx, dispatcher.Subscribe())

	var udp *transport.UDPServer
	if serveUDPPort > 0 {
		udp = transport.NewUDPServer(host, serveUDPPort, enc)
		if err := udp.Listen(); err != nil {
			return fmt.Errorf("failed to listen on UDP: %w", err)
		}
		go udp.Serve(ctx)
		go udp.BroadcastFromChannel(ctx, dispatcher.Subscribe())
	}

	if serveOut != "" {
		rec, err := recorder.NewRecorder(serveOut)
		if err != nil {
			return fmt.Errorf("failed to create recorder: %w", err)
		}
		defer rec.Close()
		go func() {
			if err := rec.RecordFromChannel(ctx, dispatcher.Subscribe(), nil); err != nil {
				slog.Error("recording error", "error", err)
			}
		}()
	}

	go dispatcher.Run(ctx)

	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	go fd.Generate(ctx, ticker, sel)

	if serveScenario != "" {
		if _, err := sel.Select(serveScenario); err != nil {
			return err
		}
	}

	printServeBanner(cmd.ErrOrStderr(), srv, ws, sse, udp, token)

	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("server error: %w", err)
	}

	stats := srv.GetStats()
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "\n📊 Session Stats:\n")
	fmt.Fprintf(errOut, "   Requests:   %d\n", stats.TotalRequests)
	fmt.Fprintf(errOut, "   Controls:   %d\n", stats.TotalControls)
	fmt.Fprintf(errOut, "   Imports:    %d (%d duplicate)\n", stats.TotalImports, stats.TotalDuplicates)
	fmt.Fprintf(errOut, "   Errors:     %d\n", stats.TotalErrors)
	fmt.Fprintf(errOut, "   Dropped:    %d frames\n", fd.Dropped()+dispatcher.GetDroppedCount())
	fmt.Fprintln(errOut, "\n✓ Shutdown complete")
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "fp_" + hex.EncodeToString(bytes), nil
}

func printServeBanner(out io.Writer, srv *api.Server, ws *transport.WebSocketServer, sse *transport.SSEServer, udp *transport.UDPServer, token string) {
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "🚗 Fahrprobe Server Started")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "  API:        %s/v1\n", srv.GetAddress())
	fmt.Fprintf(out, "  WebSocket:  %s\n", ws.GetAddress())
	fmt.Fprintf(out, "  SSE:        %s\n", sse.GetAddress())
	if udp != nil {
		fmt.Fprintf(out, "  UDP:        %s\n", udp.GetAddress())
	}
	if token != "" {
		fmt.Fprintf(out, "  Token:      %s\n", token)
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out, "")
}
