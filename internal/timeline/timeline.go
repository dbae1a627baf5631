// Package timeline runs ordered lists of timed cues against state owned by a
// caller, with cancellation that is safe against timers already in flight.
//
// Each cue gets its own one-shot timer measured from the start of the run.
// A run is identified by an epoch; Cancel, Pause and a new Run bump the epoch,
// and every timer callback compares its captured epoch with the current one
// while holding the owner's lock before touching state. A stale callback is
// dropped, so a cancelled run can never interleave with the next one.
package timeline

import (
	"log/slog"
	"sync"
	"time"
)

// Cue is a single scheduled action. Offset is measured from the start of the
// run, not from the previous cue.
type Cue struct {
	Offset time.Duration
	Fire   func()
}

// Timeline schedules cues on a Clock. All methods must be called with the
// owner's lock held; the same lock is taken by timer callbacks before a cue
// fires, which serialises cue effects with the owner's own mutations.
type Timeline struct {
	clock Clock
	lock  sync.Locker

	epoch      uint64
	cues       []Cue
	fired      []bool
	remaining  int
	timers     []Timer
	startedAt  time.Time
	elapsed    time.Duration
	paused     bool
	onComplete func()
}

// New creates a timeline driven by clock. lock is the lock that guards the
// state the cues mutate.
func New(clock Clock, lock sync.Locker) *Timeline {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timeline{clock: clock, lock: lock}
}

// Run cancels any previous run and schedules cues, which must be sorted by
// Offset. onComplete, if set, runs after the last cue has fired. Run returns
// the epoch of the new run.
func (t *Timeline) Run(cues []Cue, onComplete func()) uint64 {
	t.Cancel()

	t.cues = cues
	t.fired = make([]bool, len(cues))
	t.remaining = len(cues)
	t.onComplete = onComplete
	t.startedAt = t.clock.Now()
	t.elapsed = 0

	if len(cues) == 0 {
		t.finish()
		return t.epoch
	}
	t.schedule(0)
	return t.epoch
}

// Cancel invalidates every pending timer of the current run. It is a no-op
// when nothing is pending.
func (t *Timeline) Cancel() {
	t.epoch++
	t.stopTimers()
	t.cues = nil
	t.fired = nil
	t.remaining = 0
	t.paused = false
	t.elapsed = 0
	t.onComplete = nil
}

// Pause suspends the current run, remembering how far into the script it
// got. It reports false when there is nothing to pause.
func (t *Timeline) Pause() bool {
	if t.remaining == 0 || t.paused {
		return false
	}
	t.elapsed = t.clock.Now().Sub(t.startedAt)
	t.epoch++
	t.stopTimers()
	t.paused = true
	return true
}

// Resume reschedules the cues that had not fired when Pause was called.
func (t *Timeline) Resume() bool {
	if !t.paused {
		return false
	}
	t.paused = false
	t.startedAt = t.clock.Now().Add(-t.elapsed)
	t.schedule(t.elapsed)
	return true
}

// Active reports whether a run has cues left to fire and is not paused.
func (t *Timeline) Active() bool {
	return t.remaining > 0 && !t.paused
}

// Paused reports whether the current run is suspended.
func (t *Timeline) Paused() bool {
	return t.paused
}

// Pending returns the number of cues of the current run that have not fired.
func (t *Timeline) Pending() int {
	return t.remaining
}

// Epoch returns the identifier of the current run.
func (t *Timeline) Epoch() uint64 {
	return t.epoch
}

// Elapsed returns the script time of the current run.
func (t *Timeline) Elapsed() time.Duration {
	switch {
	case t.paused:
		return t.elapsed
	case t.remaining > 0:
		return t.clock.Now().Sub(t.startedAt)
	default:
		return 0
	}
}

func (t *Timeline) schedule(elapsed time.Duration) {
	epoch := t.epoch
	t.timers = t.timers[:0]
	for i, cue := range t.cues {
		if t.fired[i] {
			continue
		}
		delay := cue.Offset - elapsed
		if delay < 0 {
			delay = 0
		}
		t.timers = append(t.timers, t.clock.AfterFunc(delay, func() {
			t.fire(epoch, i)
		}))
	}
}

func (t *Timeline) fire(epoch uint64, i int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if epoch != t.epoch || t.paused || i >= len(t.fired) || t.fired[i] {
		return
	}
	// Offsets never decrease, so any earlier cue still pending is due too.
	// Firing them first keeps script order when timers race.
	for j := 0; j <= i; j++ {
		if t.fired[j] {
			continue
		}
		t.fired[j] = true
		t.remaining--
		call("cue", t.cues[j].Fire)

		// The cue may have restarted or cancelled the timeline.
		if epoch != t.epoch {
			return
		}
	}
	if t.remaining == 0 {
		t.finish()
	}
}

func (t *Timeline) finish() {
	done := t.onComplete
	t.onComplete = nil
	t.timers = nil
	t.cues = nil
	t.fired = nil
	if done != nil {
		call("completion", done)
	}
}

func (t *Timeline) stopTimers() {
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
}

func call(what string, f func()) {
	if f == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("timeline: recovered panic", "in", what, "panic", r)
		}
	}()
	f()
}
