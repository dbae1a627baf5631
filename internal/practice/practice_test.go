package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahrprobe/fahrprobe-cli/internal/speech"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

func items(ids ...string) []Item {
	out := make([]Item, len(ids))
	for i, id := range ids {
		out[i] = Item{ID: id, Text: "Text " + id, Translation: "Translation " + id}
	}
	return out
}

func newController(pool []Item, opts ...Option) (*Controller, *timeline.ManualClock, *speech.Recorder) {
	clock := timeline.NewManualClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	rec := &speech.Recorder{}
	opts = append([]Option{WithClock(clock), WithSpeaker(rec), WithSeed(7)}, opts...)
	return New(pool, opts...), clock, rec
}

func TestEmptyPool(t *testing.T) {
	c, clock, rec := newController(nil)

	item, ok := c.Start()
	assert.False(t, ok)
	assert.Equal(t, Item{}, item)

	snap := c.Snapshot()
	assert.True(t, snap.Empty)
	assert.Nil(t, snap.Current)
	assert.Equal(t, PhaseIdle, snap.Phase)

	clock.Advance(time.Second)
	assert.Empty(t, rec.Lines())
}

func TestStartSpeaksAfterDelay(t *testing.T) {
	c, clock, rec := newController(items("a"))

	item, ok := c.Start()
	require.True(t, ok)
	assert.Equal(t, "a", item.ID)
	assert.Equal(t, PhaseListening, c.Snapshot().Phase)

	clock.Advance(499 * time.Millisecond)
	assert.Empty(t, rec.Lines())
	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"Text a"}, rec.Lines())
}

func TestCycleRefill(t *testing.T) {
	pool := items("a", "b", "c")
	c, _, _ := newController(pool)

	seen := map[string]bool{}
	item, ok := c.Start()
	require.True(t, ok)
	seen[item.ID] = true
	for range 2 {
		item, ok = c.MarkKnown()
		require.True(t, ok)
		assert.False(t, seen[item.ID], "item %s drawn twice in one cycle", item.ID)
		seen[item.ID] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 3, c.Snapshot().Practiced)
	assert.Equal(t, 100, c.Snapshot().Coverage())

	_, ok = c.MarkUnknown()
	require.True(t, ok)
	assert.Equal(t, 1, c.Snapshot().Practiced, "a new cycle starts from a cleared set")
}

func TestCycleCanRedrawFirstItem(t *testing.T) {
	c, _, _ := newController(items("only"))

	first, ok := c.Start()
	require.True(t, ok)
	second, ok := c.MarkKnown()
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestEveryItemCanOpenTheNextCycle(t *testing.T) {
	pool := items("a", "b", "c")
	opened := map[string]bool{}
	for seed := int64(0); seed < 200 && len(opened) < len(pool); seed++ {
		c, _, _ := newController(pool, WithSeed(seed))
		first, _ := c.Start()
		c.MarkKnown()
		c.MarkKnown()
		next, _ := c.MarkKnown()
		if next.ID == first.ID {
			opened[first.ID] = true
		}
	}
	assert.Len(t, opened, 3)
}

func TestScoreInvariant(t *testing.T) {
	c, _, _ := newController(items("a", "b", "c", "d"))
	c.Start()

	judgments := []bool{true, false, false, true, true, false, true, true, false, false}
	for _, known := range judgments {
		if known {
			c.MarkKnown()
		} else {
			c.MarkUnknown()
		}
		snap := c.Snapshot()
		assert.LessOrEqual(t, snap.Correct, snap.Total)
	}
	snap := c.Snapshot()
	assert.Equal(t, 5, snap.Correct)
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 50, snap.Accuracy())
}

func TestRevealAndJudgeFromRevealed(t *testing.T) {
	c, _, _ := newController(items("a", "b"))

	c.Reveal()
	assert.Equal(t, PhaseIdle, c.Snapshot().Phase, "reveal needs a current item")

	c.Start()
	c.Reveal()
	assert.Equal(t, PhaseRevealed, c.Snapshot().Phase)

	_, ok := c.MarkUnknown()
	require.True(t, ok)
	snap := c.Snapshot()
	assert.Equal(t, PhaseListening, snap.Phase)
	assert.Equal(t, 0, snap.Correct)
	assert.Equal(t, 1, snap.Total)
}

func TestJudgeIgnoredWhenIdle(t *testing.T) {
	c, _, _ := newController(items("a"))
	_, ok := c.MarkKnown()
	assert.False(t, ok)
	assert.Zero(t, c.Snapshot().Total)
}

func TestResetCancelsPendingSpeech(t *testing.T) {
	c, clock, rec := newController(items("a", "b"))
	c.Start()
	before := c.Snapshot().SessionID

	c.Reset()
	clock.Advance(time.Second)
	assert.Empty(t, rec.Lines())
	assert.Equal(t, 1, rec.Stops())

	snap := c.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Current)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.Practiced)
	assert.NotEqual(t, before, snap.SessionID)
}

func TestQuickJudgmentsSpeakOnlyLatestItem(t *testing.T) {
	c, clock, rec := newController(items("a", "b", "c"))
	c.Start()
	clock.Advance(100 * time.Millisecond)
	last, _ := c.MarkKnown()

	clock.Advance(time.Second)
	assert.Equal(t, []string{last.Text}, rec.Lines())
}

func TestSetPoolResets(t *testing.T) {
	c, _, _ := newController(items("a", "b"))
	c.Start()
	c.MarkKnown()

	c.SetPool(nil)
	snap := c.Snapshot()
	assert.Zero(t, snap.Correct)
	assert.Zero(t, snap.Total)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Zero(t, snap.Available)

	_, ok := c.Start()
	assert.False(t, ok)
	assert.True(t, c.Snapshot().Empty)

	c.SetPool(items("x"))
	item, ok := c.Start()
	require.True(t, ok)
	assert.Equal(t, "x", item.ID)
	assert.False(t, c.Snapshot().Empty)
}

func TestReplay(t *testing.T) {
	c, _, rec := newController(items("a"))
	c.Replay()
	assert.Empty(t, rec.Lines())

	c.Start()
	c.Replay()
	assert.Equal(t, []string{"Text a"}, rec.Lines())
}

func TestSnapshotPercentagesWithoutData(t *testing.T) {
	var s Snapshot
	assert.Zero(t, s.Accuracy())
	assert.Zero(t, s.Coverage())
}
