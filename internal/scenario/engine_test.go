package scenario

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeSpeaker struct {
	mu      sync.Mutex
	lines   []string
	stopped int
}

func (s *fakeSpeaker) Speak(text string, onFinish func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

// stopwatch advances a manual clock to absolute script offsets.
type stopwatch struct {
	clock *timeline.ManualClock
}

func (w stopwatch) at(t *testing.T, offset time.Duration) {
	t.Helper()
	now := w.clock.Now().Sub(start)
	require.GreaterOrEqual(t, offset, now, "clock cannot run backwards")
	w.clock.Advance(offset - now)
}

func newInstance(t *testing.T, id string, opts ...Option) (*Instance, stopwatch) {
	t.Helper()
	reg, err := Builtin()
	require.NoError(t, err)
	def, err := reg.Get(id)
	require.NoError(t, err)

	clock := timeline.NewManualClock(start)
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewInstance(def, opts...), stopwatch{clock: clock}
}

func TestCyclistTimeline(t *testing.T) {
	in, sw := newInstance(t, "cyclist")

	snap := in.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.Playing)
	assert.Empty(t, snap.RunID)

	in.Play()
	sw.at(t, 0)
	snap = in.Snapshot()
	assert.True(t, snap.Playing)
	assert.Equal(t, 0, snap.CurrentStep)
	assert.True(t, snap.Value("signal").Flag)
	assert.NotEmpty(t, snap.RunID)

	sw.at(t, 4500*time.Millisecond)
	snap = in.Snapshot()
	assert.Equal(t, 3, snap.CurrentStep)
	assert.True(t, snap.Value("shoulder_check").Flag)

	sw.at(t, 5000*time.Millisecond)
	snap = in.Snapshot()
	assert.Equal(t, 3, snap.CurrentStep)
	assert.True(t, snap.Value("shoulder_check").Flag)
	assert.False(t, snap.Value("warning").Flag)
	assert.Equal(t, int64(5000), snap.ElapsedMS)

	sw.at(t, 6000*time.Millisecond)
	snap = in.Snapshot()
	assert.Equal(t, 4, snap.CurrentStep)
	assert.False(t, snap.Value("shoulder_check").Flag)
	assert.True(t, snap.Value("warning").Flag)

	sw.at(t, 8500*time.Millisecond)
	assert.Equal(t, Vec2{X: 75, Y: -10}, in.Snapshot().Value("cyclist").Point)

	sw.at(t, 11499*time.Millisecond)
	assert.True(t, in.Snapshot().Playing)

	sw.at(t, 11500*time.Millisecond)
	snap = in.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, 5, snap.CurrentStep)
	assert.Equal(t, Vec2{X: 75, Y: 35}, snap.Value("car").Point)
	assert.Equal(t, float64(90), snap.Value("rotation").Number)
	assert.False(t, snap.Value("signal").Flag)
}

func TestStepNeverDecreasesWithinRun(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)

	for _, id := range reg.List() {
		t.Run(id, func(t *testing.T) {
			last := 0
			violations := 0
			in, sw := newInstance(t, id, WithObserver(func(s Snapshot) {
				if s.Playing && s.CurrentStep < last {
					violations++
				}
				last = s.CurrentStep
			}))
			in.Play()
			sw.at(t, 20*time.Second)
			assert.Zero(t, violations)
			assert.Equal(t, StatusIdle, in.Status())
		})
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)

	for _, def := range reg.Definitions() {
		for _, stopAt := range []time.Duration{0, def.Duration() / 3, def.Duration() / 2, def.Duration()} {
			in, sw := newInstance(t, def.ID)
			in.Play()
			sw.at(t, stopAt)
			in.Reset()

			snap := in.Snapshot()
			assert.Equal(t, def.InitialValues(), snap.Values, "%s reset at %v", def.ID, stopAt)
			assert.Equal(t, 0, snap.CurrentStep)
			assert.False(t, snap.Playing)
			assert.Equal(t, StatusIdle, snap.Status)
			assert.Empty(t, snap.RunID)

			// Nothing from the cancelled run may land afterwards.
			sw.at(t, stopAt+time.Minute)
			assert.Equal(t, snap, in.Snapshot())
		}
	}
}

func TestDoublePlayHasOneTerminalStop(t *testing.T) {
	var mu sync.Mutex
	terminal := 0
	wasPlaying := false
	in, sw := newInstance(t, "emergency", WithObserver(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if wasPlaying && !s.Playing && s.Status == StatusIdle {
			terminal++
		}
		wasPlaying = s.Playing
	}))

	in.Play()
	first := in.RunID()
	in.Play()
	assert.Equal(t, first, in.RunID(), "second Play must not start another run")

	sw.at(t, 100*time.Millisecond)
	in.Play()
	assert.Equal(t, first, in.RunID())

	sw.at(t, time.Minute)
	assert.Equal(t, 1, terminal)
	assert.Equal(t, StatusIdle, in.Status())
}

func TestPlayAfterFinishStartsFromInitialState(t *testing.T) {
	in, sw := newInstance(t, "cyclist")
	in.Play()
	first := in.RunID()
	sw.at(t, 12*time.Second)
	require.Equal(t, StatusIdle, in.Status())

	in.Play()
	snap := in.Snapshot()
	assert.NotEqual(t, first, snap.RunID)
	assert.Equal(t, in.Definition().InitialValues(), snap.Values)
	assert.Equal(t, 0, snap.CurrentStep)
	assert.True(t, snap.Playing)
}

func TestPauseAndResume(t *testing.T) {
	in, sw := newInstance(t, "cyclist")
	in.Play()
	sw.at(t, 4000*time.Millisecond)
	require.Equal(t, 2, in.Snapshot().CurrentStep)

	in.Pause()
	snap := in.Snapshot()
	assert.Equal(t, StatusPaused, snap.Status)
	assert.False(t, snap.Playing)
	assert.Equal(t, int64(4000), snap.ElapsedMS)

	sw.at(t, 30*time.Second)
	assert.Equal(t, snap, in.Snapshot(), "paused state must not change")

	in.Play()
	assert.Equal(t, StatusPlaying, in.Status())
	assert.Equal(t, snap.RunID, in.RunID(), "resume keeps the run")

	sw.at(t, 30*time.Second+499*time.Millisecond)
	assert.Equal(t, 2, in.Snapshot().CurrentStep)
	sw.at(t, 30*time.Second+500*time.Millisecond)
	assert.Equal(t, 3, in.Snapshot().CurrentStep)

	sw.at(t, 40*time.Second)
	assert.Equal(t, StatusIdle, in.Status())
}

func TestToggle(t *testing.T) {
	in, sw := newInstance(t, "traffic-light")

	in.Toggle()
	assert.Equal(t, StatusPlaying, in.Status())
	sw.at(t, 1500*time.Millisecond)
	assert.Equal(t, "yellow", in.Snapshot().Value("light").Choice)

	in.Toggle()
	assert.Equal(t, StatusPaused, in.Status())
	in.Toggle()
	assert.Equal(t, StatusPlaying, in.Status())
}

func TestPauseWhenIdleIsNoop(t *testing.T) {
	in, _ := newInstance(t, "tram")
	in.Pause()
	assert.Equal(t, StatusIdle, in.Status())
}

func TestScriptLinesReachSpeaker(t *testing.T) {
	speaker := &fakeSpeaker{}
	in, sw := newInstance(t, "emergency", WithSpeaker(speaker))

	in.Play()
	sw.at(t, 1599*time.Millisecond)
	assert.Empty(t, speaker.lines)

	sw.at(t, 1600*time.Millisecond)
	assert.Equal(t, []string{"Gefahrbremsung!"}, speaker.lines)
	assert.Equal(t, "Gefahrbremsung!", in.Snapshot().Said)

	in.Reset()
	assert.Equal(t, 1, speaker.stopped)
	assert.Empty(t, in.Snapshot().Said)
}

func TestRoundaboutPolarPositions(t *testing.T) {
	in, sw := newInstance(t, "roundabout")
	in.Play()

	sw.at(t, 500*time.Millisecond)
	car := in.Snapshot().Value("car")
	assert.Equal(t, Polar{Angle: 180, Radius: 38}, car.Polar)

	sw.at(t, 7000*time.Millisecond)
	car = in.Snapshot().Value("car")
	assert.Equal(t, Polar{Angle: 330, Radius: 28}, car.Polar)
	assert.True(t, in.Snapshot().Value("signal_right").Flag)
}

func TestSelectorFreezesAbandonedInstance(t *testing.T) {
	reg, err := Builtin()
	require.NoError(t, err)
	clock := timeline.NewManualClock(start)
	sw := stopwatch{clock: clock}
	sel := NewSelector(reg, WithClock(clock))
	defer sel.Close()

	cyclist, err := sel.Select("cyclist")
	require.NoError(t, err)
	cyclist.Play()
	sw.at(t, 3*time.Second)
	require.Equal(t, 2, cyclist.Snapshot().CurrentStep)

	tram, err := sel.Select("tram")
	require.NoError(t, err)
	assert.Same(t, tram, sel.Active())

	frozen := cyclist.Snapshot()
	assert.Equal(t, StatusIdle, frozen.Status)
	assert.Equal(t, cyclist.Definition().InitialValues(), frozen.Values)

	sw.at(t, 3*time.Second+2*cyclist.Definition().Duration())
	assert.Equal(t, frozen, cyclist.Snapshot())

	cyclist.Play()
	assert.Equal(t, StatusIdle, cyclist.Status(), "closed instance must stay idle")

	_, err = sel.Select("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, tram, sel.Active(), "failed select keeps the active scenario")
}
