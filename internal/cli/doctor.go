package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fahrprobe/fahrprobe-cli/internal/config"
	"github.com/fahrprobe/fahrprobe-cli/internal/progress"
	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and print connection info",
	Long:  `Validates the local environment: configuration, scenarios, the progress database, speech engines and port availability.`,
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ok := func(format string, a ...any) { fmt.Fprintf(out, "✅ "+format+"\n", a...) }
	warn := func(format string, a ...any) { fmt.Fprintf(out, "⚠️  "+format+"\n", a...) }
	fail := func(format string, a ...any) { fmt.Fprintf(out, "❌ "+format+"\n", a...) }

	fmt.Fprintln(out, "🏥 Fahrprobe Environment Check")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Version:           %s (%s)\n", Version, Commit)
	fmt.Fprintf(out, "Go Version:        %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	path := globalOpts.ConfigPath
	if path == "" {
		path = config.Path()
	}
	if _, err := os.Stat(path); err == nil {
		ok("Config file: %s", path)
	} else {
		warn("No config file at %s, using defaults", path)
	}

	if registry, err := loadRegistry(); err == nil {
		ok("Scenarios: %s", strings.Join(registry.List(), ", "))
	} else {
		fail("Scenarios: %v", err)
	}

	if cat, err := loadCatalog(); err == nil {
		ok("Catalog: %d commands, %d questions", cat.CommandCount(), len(cat.Questions("")))
	} else {
		fail("Catalog: %v", err)
	}

	if store, err := progress.OpenSQLite(current.DataPath); err == nil {
		learned := progress.NewLearnedSet(store)
		if err := learned.Load(); err == nil {
			ok("Progress database: %s (%d learned)", current.DataPath, learned.Len())
		} else {
			fail("Progress database: %v", err)
		}
		store.Close()
	} else {
		fail("Progress database: %v", err)
	}

	switch engines := speech.Available(); {
	case current.SpeechDisabled():
		warn("Speech disabled by configuration")
	case current.SpeechCommand != "":
		if _, err := speech.ParseCommand(current.SpeechCommand); err == nil {
			ok("Speech command: %s", current.SpeechCommand)
		} else {
			fail("Speech command: %v", err)
		}
	case len(engines) > 0:
		ok("Speech engines: %s", strings.Join(engines, ", "))
	default:
		warn("No speech engine found; install espeak-ng for German audio")
	}

	if isPortAvailable(current.Host, current.Port) {
		ok("Port %d is available on %s", current.Port, current.Host)
	} else {
		warn("Port %d is in use on %s", current.Port, current.Host)
		fmt.Fprintln(out, "   Use 'fahrprobe serve --port' to pick another one")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "📡 Connection Examples (after 'fahrprobe serve'):")
	fmt.Fprintln(out)
	base := current.Addr()
	fmt.Fprintf(out, "  curl http://%s/v1/scenarios\n", base)
	fmt.Fprintf(out, "  curl -X POST http://%s/v1/scenarios/cyclist/select\n", base)
	fmt.Fprintf(out, "  curl -X POST http://%s/v1/active/play\n", base)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "JavaScript:")
	fmt.Fprintf(out, "  const ws = new WebSocket('ws://%s/ws');\n", base)
	fmt.Fprintln(out, "  ws.onmessage = (e) => console.log(JSON.parse(e.data));")
	fmt.Fprintln(out, "  ws.send(JSON.stringify({action: 'select', scenario: 'tram'}));")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "✅ Environment check complete")
	return nil
}
