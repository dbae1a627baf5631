package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

func setup(t *testing.T, buffer int) (*Feed, *scenario.Selector, *timeline.ManualClock) {
	t.Helper()
	reg, err := scenario.Builtin()
	require.NoError(t, err)

	f := New(reg, Config{Buffer: buffer})
	clock := timeline.NewManualClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	sel := scenario.NewSelector(reg,
		scenario.WithClock(clock),
		scenario.WithObserver(f.Observe),
		scenario.WithSpeaker(f.Speaker()),
	)
	t.Cleanup(sel.Close)
	return f, sel, clock
}

func drain(f *Feed) []models.Frame {
	var out []models.Frame
	for {
		select {
		case frame := <-f.Frames():
			out = append(out, frame)
		default:
			return out
		}
	}
}

func TestFeedPublishesStateAndSpeakFrames(t *testing.T) {
	f, sel, clock := setup(t, 64)

	in, err := sel.Select("emergency")
	require.NoError(t, err)
	in.Play()
	clock.Advance(time.Minute)

	frames := drain(f)
	require.NotEmpty(t, frames)

	var speak *models.Frame
	last := int64(0)
	for i := range frames {
		fr := frames[i]
		assert.NoError(t, fr.Validate(), "frame %d", i)
		assert.Greater(t, fr.Meta.Sequence, last, "sequence must increase")
		last = fr.Meta.Sequence
		if fr.Kind == models.KindSpeak {
			speak = &frames[i]
		}
	}

	require.NotNil(t, speak, "expected a speak frame")
	assert.Equal(t, "Gefahrbremsung!", speak.Speech.Text)
	assert.Equal(t, DefaultLang, speak.Speech.Lang)
	assert.Equal(t, in.RunID(), speak.Session.RunID)
	assert.Equal(t, "emergency", speak.Session.Scenario)

	first := frames[0]
	require.Equal(t, models.KindState, first.Kind)
	assert.Equal(t, "playing", first.State.Status)
	assert.Equal(t, 5, first.State.Steps)

	final := frames[len(frames)-1]
	assert.Equal(t, "idle", final.State.Status)
	assert.False(t, final.State.Playing)
	assert.JSONEq(t, `true`, string(final.State.Values["stopped"]))
}

func TestFeedEncodesValuesInNaturalShape(t *testing.T) {
	f, sel, _ := setup(t, 8)

	in, err := sel.Select("roundabout")
	require.NoError(t, err)
	f.Publish(in.Snapshot())

	frames := drain(f)
	require.Len(t, frames, 1)

	var car map[string]float64
	require.NoError(t, json.Unmarshal(frames[0].State.Values["car"], &car))
	assert.Equal(t, float64(180), car["angle"])
	assert.Contains(t, car, "x")
}

func TestFeedDropsWhenFull(t *testing.T) {
	f, sel, clock := setup(t, 1)

	in, err := sel.Select("cyclist")
	require.NoError(t, err)
	in.Play()
	clock.Advance(time.Minute)

	assert.Len(t, drain(f), 1)
	assert.Positive(t, f.Dropped())
}

func TestFeedCloseStopsPublishing(t *testing.T) {
	f, sel, _ := setup(t, 8)

	in, err := sel.Select("tram")
	require.NoError(t, err)
	f.Close()
	f.Close()

	in.Play()
	_, ok := <-f.Frames()
	assert.False(t, ok, "channel should be closed and empty")
}

func TestSpeakerIsSilent(t *testing.T) {
	f, _, _ := setup(t, 8)
	s := f.Speaker()
	assert.False(t, s.IsSpeaking())
	s.Stop()
	assert.Empty(t, drain(f))
}

func TestTickAnnouncesSelectionThenFollowsPlayback(t *testing.T) {
	f, sel, clock := setup(t, 64)

	assert.Nil(t, f.tick(sel, nil))
	assert.Empty(t, drain(f))

	in, err := sel.Select("traffic-light")
	require.NoError(t, err)
	last := f.tick(sel, nil)
	assert.Same(t, in, last)
	frames := drain(f)
	require.Len(t, frames, 1)
	assert.Equal(t, "traffic-light", frames[0].Session.Scenario)
	assert.Equal(t, "idle", frames[0].State.Status)

	f.tick(sel, last)
	assert.Empty(t, drain(f), "idle instance already announced")

	in.Play()
	drain(f)
	clock.Advance(100 * time.Millisecond)
	drain(f)
	f.tick(sel, last)
	frames = drain(f)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].State.Playing)
}

func TestStateFrameTakesSequenceWithoutPublishing(t *testing.T) {
	f, sel, _ := setup(t, 8)

	in, err := sel.Select("cyclist")
	require.NoError(t, err)
	frame := f.StateFrame(in.Snapshot())
	require.NoError(t, frame.Validate())
	assert.Equal(t, int64(1), frame.Meta.Sequence)
	assert.Equal(t, 6, frame.State.Steps)
	assert.Empty(t, drain(f))

	in.Play()
	frames := drain(f)
	require.NotEmpty(t, frames)
	assert.Equal(t, int64(2), frames[0].Meta.Sequence)
}
