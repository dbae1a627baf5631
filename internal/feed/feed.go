// Package feed turns scenario state changes into frames for live clients
// and recordings.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
)

// DefaultLang is the speech language announced in speak frames.
const DefaultLang = "de-DE"

// Config holds feed configuration
type Config struct {
	// Buffer is the capacity of the frame channel.
	Buffer int
	Lang   string
}

// Feed publishes frames on a buffered channel. Publishing never blocks:
// when the channel is full the frame is dropped and counted, because the
// observer hook runs with the scenario lock held.
type Feed struct {
	registry *scenario.Registry
	lang     string

	mu       sync.Mutex
	out      chan models.Frame
	closed   bool
	sequence int64
	session  models.Session

	dropped atomic.Int64
}

// New creates a feed that looks up step counts in registry.
func New(registry *scenario.Registry, config Config) *Feed {
	if config.Buffer <= 0 {
		config.Buffer = 256
	}
	if config.Lang == "" {
		config.Lang = DefaultLang
	}
	return &Feed{
		registry: registry,
		lang:     config.Lang,
		out:      make(chan models.Frame, config.Buffer),
	}
}

// Frames is the outgoing frame stream. It is closed by Close.
func (f *Feed) Frames() <-chan models.Frame {
	return f.out
}

// Dropped returns how many frames were discarded on a full channel.
func (f *Feed) Dropped() int64 {
	return f.dropped.Load()
}

// Observe is a scenario observer; pass it to scenario.WithObserver.
func (f *Feed) Observe(snap scenario.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.session = models.Session{RunID: snap.RunID, Scenario: snap.Scenario}
	f.publish(f.stateFrame(snap))
}

// Publish sends a state frame for snap outside of any observer hook.
func (f *Feed) Publish(snap scenario.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publish(f.stateFrame(snap))
}

// Generate publishes a state frame on every tick while the active
// instance is playing, so clients see elapsed time advance between
// script actions. A newly selected instance is announced on the first
// tick after the switch.
func (f *Feed) Generate(ctx context.Context, ticker *time.Ticker, sel *scenario.Selector) error {
	var last *scenario.Instance
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last = f.tick(sel, last)
		}
	}
}

func (f *Feed) tick(sel *scenario.Selector, last *scenario.Instance) *scenario.Instance {
	in := sel.Active()
	if in == nil {
		return nil
	}
	if snap := in.Snapshot(); snap.Playing || in != last {
		f.Publish(snap)
	}
	return in
}

// StateFrame builds a state frame for snap without publishing it. It takes
// the next sequence number, so a client greeted with it sees the stream
// continue in order.
func (f *Feed) StateFrame(snap scenario.Snapshot) models.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateFrame(snap)
}

// Speaker returns a Speaker that emits speak frames for the current
// session. Clients do the talking.
func (f *Feed) Speaker() *Speaker {
	return &Speaker{feed: f}
}

// Close stops publishing and closes the frame channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.out)
}

// stateFrame runs with f.mu held.
func (f *Feed) stateFrame(snap scenario.Snapshot) models.Frame {
	f.sequence++
	frame := models.NewFrame(uuid.New().String(), models.KindState,
		models.Session{RunID: snap.RunID, Scenario: snap.Scenario}, f.sequence)

	state := &models.State{
		Status:      string(snap.Status),
		Playing:     snap.Playing,
		CurrentStep: snap.CurrentStep,
		ElapsedMS:   snap.ElapsedMS,
		Said:        snap.Said,
		Values:      make(map[string]json.RawMessage, len(snap.Values)),
	}
	if def, err := f.registry.Get(snap.Scenario); err == nil {
		state.Steps = len(def.Steps)
	}
	for name, v := range snap.Values {
		raw, err := json.Marshal(v)
		if err != nil {
			slog.Warn("feed: failed to encode value", "scenario", snap.Scenario, "attribute", name, "error", err)
			continue
		}
		state.Values[name] = raw
	}
	frame.State = state
	return frame
}

// publish runs with f.mu held.
func (f *Feed) publish(frame models.Frame) {
	if f.closed {
		return
	}
	select {
	case f.out <- frame:
	default:
		n := f.dropped.Add(1)
		slog.Debug("feed: dropped frame (buffer full)", "kind", frame.Kind, "dropped_total", n)
	}
}

// Speaker turns script lines into speak frames.
type Speaker struct {
	feed *Feed
}

// Speak publishes a speak frame. onFinish is never called: the feed
// cannot know when a remote client is done talking.
func (s *Speaker) Speak(text string, onFinish func()) {
	f := s.feed
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sequence++
	frame := models.NewFrame(uuid.New().String(), models.KindSpeak, f.session, f.sequence)
	frame.Speech = &models.Speech{Text: text, Lang: f.lang}
	f.publish(frame)
}

// Stop is a no-op; the next state frame carries an empty line.
func (s *Speaker) Stop() {}

func (s *Speaker) IsSpeaking() bool { return false }
