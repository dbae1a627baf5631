package timeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) cue(at time.Duration, name string) Cue {
	return Cue{Offset: at, Fire: func() { r.log = append(r.log, name) }}
}

func newTimeline() (*Timeline, *ManualClock, *recorder) {
	clock := NewManualClock(epoch0)
	rec := &recorder{}
	return New(clock, &rec.mu), clock, rec
}

func TestRunFiresInOffsetOrder(t *testing.T) {
	tl, clock, rec := newTimeline()
	done := false

	rec.mu.Lock()
	tl.Run([]Cue{
		rec.cue(0, "a"),
		rec.cue(500*time.Millisecond, "b"),
		rec.cue(1500*time.Millisecond, "c"),
	}, func() { done = true })
	rec.mu.Unlock()

	clock.Advance(0)
	assert.Equal(t, []string{"a"}, rec.log)

	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.log)

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.log)
	assert.False(t, done)

	clock.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, rec.log)
	assert.True(t, done)
	assert.False(t, tl.Active())
	assert.Zero(t, clock.Pending())
}

func TestCancelDropsPendingCues(t *testing.T) {
	tl, clock, rec := newTimeline()
	completed := false

	rec.mu.Lock()
	tl.Run([]Cue{rec.cue(0, "a"), rec.cue(time.Second, "b")}, func() { completed = true })
	rec.mu.Unlock()

	clock.Advance(100 * time.Millisecond)

	rec.mu.Lock()
	tl.Cancel()
	rec.mu.Unlock()

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a"}, rec.log)
	assert.False(t, completed)
	assert.False(t, tl.Active())
}

func TestCancelIsIdempotent(t *testing.T) {
	tl, _, rec := newTimeline()
	rec.mu.Lock()
	defer rec.mu.Unlock()

	tl.Cancel()
	tl.Cancel()
	assert.False(t, tl.Active())
	assert.Zero(t, tl.Pending())
}

func TestStaleCallbackIsIgnored(t *testing.T) {
	// A timer whose Stop arrives too late still calls back; the epoch check
	// must keep it from touching state.
	clock := &lateClock{ManualClock: NewManualClock(epoch0)}
	rec := &recorder{}
	tl := New(clock, &rec.mu)

	rec.mu.Lock()
	tl.Run([]Cue{rec.cue(time.Second, "old")}, nil)
	tl.Run([]Cue{rec.cue(2*time.Second, "new")}, nil)
	rec.mu.Unlock()

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"new"}, rec.log)
}

// lateClock hands out timers whose Stop never succeeds.
type lateClock struct {
	*ManualClock
}

type unstoppable struct{}

func (unstoppable) Stop() bool { return false }

func (c *lateClock) AfterFunc(d time.Duration, f func()) Timer {
	c.ManualClock.AfterFunc(d, f)
	return unstoppable{}
}

func TestRunReplacesPreviousRun(t *testing.T) {
	tl, clock, rec := newTimeline()
	firstDone, secondDone := 0, 0

	rec.mu.Lock()
	tl.Run([]Cue{rec.cue(0, "1a"), rec.cue(time.Second, "1b")}, func() { firstDone++ })
	rec.mu.Unlock()
	clock.Advance(500 * time.Millisecond)

	rec.mu.Lock()
	tl.Run([]Cue{rec.cue(0, "2a"), rec.cue(time.Second, "2b")}, func() { secondDone++ })
	rec.mu.Unlock()
	clock.Advance(2 * time.Second)

	assert.Equal(t, []string{"1a", "2a", "2b"}, rec.log)
	assert.Equal(t, 0, firstDone)
	assert.Equal(t, 1, secondDone)
}

func TestEmptyRunCompletesImmediately(t *testing.T) {
	tl, _, rec := newTimeline()
	done := false

	rec.mu.Lock()
	tl.Run(nil, func() { done = true })
	rec.mu.Unlock()

	assert.True(t, done)
	assert.False(t, tl.Active())
}

func TestPanickingCueCountsAsFired(t *testing.T) {
	tl, clock, rec := newTimeline()
	done := false

	rec.mu.Lock()
	tl.Run([]Cue{
		{Offset: 0, Fire: func() { panic("boom") }},
		rec.cue(time.Second, "after"),
	}, func() { done = true })
	rec.mu.Unlock()

	require.NotPanics(t, func() { clock.Advance(2 * time.Second) })
	assert.Equal(t, []string{"after"}, rec.log)
	assert.True(t, done)
}

func TestPauseAndResume(t *testing.T) {
	tl, clock, rec := newTimeline()

	rec.mu.Lock()
	tl.Run([]Cue{
		rec.cue(0, "a"),
		rec.cue(time.Second, "b"),
		rec.cue(2*time.Second, "c"),
	}, nil)
	rec.mu.Unlock()

	clock.Advance(1200 * time.Millisecond)
	require.Equal(t, []string{"a", "b"}, rec.log)

	rec.mu.Lock()
	require.True(t, tl.Pause())
	assert.False(t, tl.Pause())
	assert.True(t, tl.Paused())
	assert.False(t, tl.Active())
	assert.Equal(t, 1200*time.Millisecond, tl.Elapsed())
	rec.mu.Unlock()

	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"a", "b"}, rec.log)

	rec.mu.Lock()
	require.True(t, tl.Resume())
	assert.False(t, tl.Resume())
	rec.mu.Unlock()

	clock.Advance(799 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.log)
	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, rec.log)
}

func TestPauseWithNothingPending(t *testing.T) {
	tl, _, rec := newTimeline()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.False(t, tl.Pause())
	assert.False(t, tl.Resume())
}

func TestCueMayCancelTimeline(t *testing.T) {
	tl, clock, rec := newTimeline()
	done := false

	rec.mu.Lock()
	tl.Run([]Cue{
		{Offset: 0, Fire: func() { tl.Cancel() }},
		rec.cue(time.Second, "never"),
	}, func() { done = true })
	rec.mu.Unlock()

	clock.Advance(2 * time.Second)
	assert.Empty(t, rec.log)
	assert.False(t, done)
}

func TestScaledClock(t *testing.T) {
	base := NewManualClock(epoch0)
	fast := Scaled(base, 4)
	fired := false
	fast.AfterFunc(4*time.Second, func() { fired = true })

	base.Advance(999 * time.Millisecond)
	assert.False(t, fired)
	base.Advance(time.Millisecond)
	assert.True(t, fired)
	assert.Equal(t, 4*time.Second, fast.Now().Sub(epoch0))

	assert.Equal(t, Clock(base), Scaled(base, 1))
	assert.Equal(t, Clock(base), Scaled(base, 0))
}

// racingClock hands out timers that only fire when the test says so.
type racingClock struct {
	*ManualClock
	funcs []func()
}

func (c *racingClock) AfterFunc(d time.Duration, f func()) Timer {
	c.funcs = append(c.funcs, f)
	return unstoppable{}
}

func TestEqualOffsetsKeepScriptOrder(t *testing.T) {
	clock := &racingClock{ManualClock: NewManualClock(epoch0)}
	rec := &recorder{}
	tl := New(clock, &rec.mu)
	done := false

	rec.mu.Lock()
	tl.Run([]Cue{rec.cue(time.Second, "a"), rec.cue(time.Second, "b"), rec.cue(time.Second, "c")}, func() { done = true })
	rec.mu.Unlock()
	require.Len(t, clock.funcs, 3)

	for i := len(clock.funcs) - 1; i >= 0; i-- {
		clock.funcs[i]()
	}
	assert.Equal(t, []string{"a", "b", "c"}, rec.log)
	assert.True(t, done)
}
