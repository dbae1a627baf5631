package scenario

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

// Status is the lifecycle state of an Instance.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// Speaker receives the lines a script says. Speak is called with the
// instance lock held and must not block.
type Speaker interface {
	Speak(text string, onFinish func())
	Stop()
}

// Snapshot is a copy of an instance's runtime state.
type Snapshot struct {
	Scenario    string           `json:"scenario"`
	RunID       string           `json:"run_id,omitempty"`
	Status      Status           `json:"status"`
	Playing     bool             `json:"playing"`
	CurrentStep int              `json:"current_step"`
	ElapsedMS   int64            `json:"elapsed_ms"`
	Said        string           `json:"said,omitempty"`
	Values      map[string]Value `json:"values"`
}

// Value returns a single attribute value.
func (s Snapshot) Value(name string) Value {
	return s.Values[name]
}

// Option configures an Instance.
type Option func(*Instance)

// WithClock drives the instance from clock instead of the runtime timers.
func WithClock(clock timeline.Clock) Option {
	return func(in *Instance) { in.clock = clock }
}

// WithSpeaker hands script lines to s.
func WithSpeaker(s Speaker) Option {
	return func(in *Instance) { in.speaker = s }
}

// WithObserver registers fn as a change observer. See Instance.OnChange.
func WithObserver(fn func(Snapshot)) Option {
	return func(in *Instance) { in.observers = append(in.observers, fn) }
}

// Instance is the runtime of one scenario. It owns its state exclusively;
// all mutation goes through the instance lock, which is shared with the
// timeline driving the script.
type Instance struct {
	def     *Definition
	clock   timeline.Clock
	speaker Speaker

	mu        sync.Mutex
	tl        *timeline.Timeline
	cues      []timeline.Cue
	status    Status
	playing   bool
	step      int
	values    map[string]Value
	runID     string
	said      string
	closed    bool
	observers []func(Snapshot)
}

// NewInstance creates an idle instance of def at its initial state.
func NewInstance(def *Definition, opts ...Option) *Instance {
	in := &Instance{
		def:    def,
		clock:  timeline.RealClock{},
		status: StatusIdle,
		values: def.InitialValues(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.tl = timeline.New(in.clock, &in.mu)

	in.cues = make([]timeline.Cue, len(def.Script))
	for i := range def.Script {
		action := &def.Script[i]
		in.cues[i] = timeline.Cue{Offset: action.At, Fire: func() { in.apply(action) }}
	}
	return in
}

// Definition returns the scenario this instance runs.
func (in *Instance) Definition() *Definition {
	return in.def
}

// OnChange registers fn to receive a snapshot after every state change.
// Observers run with the instance lock held: they must return quickly and
// must not call back into the instance.
func (in *Instance) OnChange(fn func(Snapshot)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.observers = append(in.observers, fn)
}

// Play starts the script. It does nothing while already playing, resumes a
// paused run, and otherwise starts a fresh run from the initial state.
func (in *Instance) Play() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return
	}
	switch in.status {
	case StatusPlaying:
		return
	case StatusPaused:
		in.tl.Resume()
		in.status = StatusPlaying
		in.playing = true
		in.notify()
		return
	}

	in.restore()
	in.runID = uuid.New().String()
	in.status = StatusPlaying
	in.playing = true
	in.notify()
	in.tl.Run(in.cues, in.complete)
}

// Pause suspends a running script. Play resumes it from the same point.
func (in *Instance) Pause() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.status != StatusPlaying {
		return
	}
	in.tl.Pause()
	in.status = StatusPaused
	in.playing = false
	in.notify()
}

// Toggle pauses a running script and plays otherwise.
func (in *Instance) Toggle() {
	in.mu.Lock()
	playing := in.status == StatusPlaying
	in.mu.Unlock()

	if playing {
		in.Pause()
	} else {
		in.Play()
	}
}

// Reset cancels the script and restores the declared initial state.
func (in *Instance) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.reset()
}

// Close resets the instance and detaches it for good. Later calls to Play
// are ignored.
func (in *Instance) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.reset()
	in.closed = true
	in.observers = nil
}

// Status returns the current lifecycle state.
func (in *Instance) Status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.status
}

// RunID identifies the current or most recent run. It is empty before the
// first Play and after Reset.
func (in *Instance) RunID() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.runID
}

// Snapshot returns a deep copy of the current state.
func (in *Instance) Snapshot() Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.snapshot()
}

func (in *Instance) snapshot() Snapshot {
	return Snapshot{
		Scenario:    in.def.ID,
		RunID:       in.runID,
		Status:      in.status,
		Playing:     in.playing,
		CurrentStep: in.step,
		ElapsedMS:   in.tl.Elapsed().Milliseconds(),
		Said:        in.said,
		Values:      maps.Clone(in.values),
	}
}

func (in *Instance) reset() {
	in.tl.Cancel()
	if in.said != "" && in.speaker != nil {
		in.speaker.Stop()
	}
	in.restore()
	in.runID = ""
	in.status = StatusIdle
	in.playing = false
	in.notify()
}

func (in *Instance) restore() {
	in.values = in.def.InitialValues()
	in.step = 0
	in.said = ""
}

// apply runs with the lock held by the timeline.
func (in *Instance) apply(a *Action) {
	if a.Step != nil && *a.Step >= in.step {
		in.step = *a.Step
	}
	for _, set := range a.Set {
		in.values[set.Attr] = set.Apply(in.values[set.Attr])
	}
	if a.Say != "" {
		in.said = a.Say
		if in.speaker != nil {
			in.speaker.Speak(a.Say, nil)
		}
	}
	if a.Stop {
		in.playing = false
		in.status = StatusIdle
	}
	in.notify()
}

func (in *Instance) complete() {
	if in.status == StatusIdle {
		return
	}
	in.status = StatusIdle
	in.playing = false
	in.notify()
}

func (in *Instance) notify() {
	if len(in.observers) == 0 {
		return
	}
	snap := in.snapshot()
	for _, fn := range in.observers {
		fn(snap)
	}
}

// Elapsed is a convenience for callers that only need script time.
func (in *Instance) Elapsed() time.Duration {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.tl.Elapsed()
}
