package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fahrprobe/fahrprobe-cli/internal/catalog"
	"github.com/fahrprobe/fahrprobe-cli/internal/progress"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
)

// loadRegistry returns the built-in scenarios plus any found in the
// configured scenario directory.
func loadRegistry() (*scenario.Registry, error) {
	registry, err := scenario.Builtin()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in scenarios: %w", err)
	}
	dir := current.ScenarioDir
	if dir == "" {
		return registry, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if err := registry.LoadFromDir(dir); err != nil {
		return nil, fmt.Errorf("failed to load scenarios from %s: %w", dir, err)
	}
	return registry, nil
}

func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// openLearned opens the progress database and hydrates the learned set.
// The caller closes the returned store.
func openLearned() (*progress.LearnedSet, *progress.SQLiteStore, error) {
	store, err := progress.OpenSQLite(current.DataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	learned := progress.NewLearnedSet(store)
	if err := learned.Load(); err != nil {
		store.Close()
		return nil, nil, err
	}
	return learned, store, nil
}

// localSpeaker returns the terminal speech engine, or a silent one when
// speech is switched off.
func localSpeaker() speech.Speaker {
	if current.SpeechDisabled() {
		return speech.Nop{}
	}
	return speech.Detect(current.SpeechCommand)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseTickRate(rate string) (time.Duration, error) {
	var hz float64
	_, err := fmt.Sscanf(rate, "%fhz", &hz)
	if err != nil {
		return 0, err
	}
	if hz <= 0 {
		return 0, fmt.Errorf("rate must be positive")
	}
	return time.Duration(float64(time.Second) / hz), nil
}

func isPortAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
