package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func frameAt(id string, offset time.Duration, seq int64) models.Frame {
	return models.Frame{
		SchemaVersion: models.FrameSchema,
		FrameID:       id,
		Timestamp:     base.Add(offset).Format(time.RFC3339Nano),
		Kind:          models.KindSpeak,
		Session:       models.Session{RunID: "run", Scenario: "tram"},
		Speech:        &models.Speech{Text: id},
		Meta:          models.Meta{Sequence: seq},
	}
}

func writeRecording(t *testing.T, frames ...models.Frame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.ndjson")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	ch := make(chan models.Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	require.NoError(t, rec.RecordFromChannel(context.Background(), ch, nil))
	assert.Equal(t, len(frames), rec.Count())
	return path
}

func TestRecorderWritesNDJSON(t *testing.T) {
	path := writeRecording(t, frameAt("a", 0, 1), frameAt("b", time.Second, 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"frame_id":"a"`)
	assert.Contains(t, lines[1], `"frame_id":"b"`)
}

func TestRecordFromChannelStopsOnPredicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.ndjson")
	rec, err := NewRecorder(path)
	require.NoError(t, err)

	ch := make(chan models.Frame, 3)
	ch <- frameAt("a", 0, 1)
	ch <- frameAt("stop", 0, 2)
	ch <- frameAt("never", 0, 3)

	err = rec.RecordFromChannel(context.Background(), ch, func(f models.Frame) bool {
		return f.FrameID == "stop"
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count())

	n, err := NewReplayer(path, 1, false).CountFrames()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReplayerMetadata(t *testing.T) {
	path := writeRecording(t, frameAt("first", 0, 1), frameAt("second", time.Second, 2), frameAt("third", 2*time.Second, 3))

	r := NewReplayer(path, 1, false)
	n, err := r.CountFrames()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	first, err := r.GetFirstFrame()
	require.NoError(t, err)
	assert.Equal(t, "first", first.FrameID)

	empty := filepath.Join(t.TempDir(), "empty.ndjson")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = NewReplayer(empty, 1, false).GetFirstFrame()
	assert.Error(t, err)

	_, err = NewReplayer(filepath.Join(t.TempDir(), "missing"), 1, false).CountFrames()
	assert.Error(t, err)
}

func waitPending(t *testing.T, clock *timeline.ManualClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for clock.Pending() == 0 {
		require.True(t, time.Now().Before(deadline), "replayer never scheduled its wait")
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, out <-chan models.Frame) models.Frame {
	t.Helper()
	select {
	case f := <-out:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame")
		return models.Frame{}
	}
}

func TestReplayHonoursTimingAndSpeed(t *testing.T) {
	path := writeRecording(t,
		frameAt("one", 0, 1),
		frameAt("two", time.Second, 2),
		frameAt("three", 3*time.Second, 3),
	)

	clock := timeline.NewManualClock(base)
	r := NewReplayer(path, 2, false)
	r.SetClock(clock)

	out := make(chan models.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Replay(context.Background(), out) }()

	assert.Equal(t, "one", receive(t, out).FrameID)

	waitPending(t, clock)
	clock.Advance(499 * time.Millisecond)
	select {
	case f := <-out:
		t.Fatalf("frame %s arrived early", f.FrameID)
	default:
	}
	clock.Advance(time.Millisecond)
	assert.Equal(t, "two", receive(t, out).FrameID)

	waitPending(t, clock)
	clock.Advance(time.Second)
	assert.Equal(t, "three", receive(t, out).FrameID)

	require.NoError(t, <-errCh)
}

func TestReplayLoopsUntilCancelled(t *testing.T) {
	path := writeRecording(t, frameAt("only", 0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan models.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- NewReplayer(path, 1, true).Replay(ctx, out) }()

	for i := 0; i < 3; i++ {
		assert.Equal(t, "only", receive(t, out).FrameID)
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestReplayRejectsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	out := make(chan models.Frame, 1)
	err := NewReplayer(path, 1, false).Replay(context.Background(), out)
	assert.ErrorContains(t, err, "line 1")
}
