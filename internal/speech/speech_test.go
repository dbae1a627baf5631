package speech

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	var s Speaker = Nop{}
	called := false
	s.Speak("Hallo", func() { called = true })
	s.Stop()
	assert.False(t, s.IsSpeaking())
	assert.False(t, called)
}

func TestMultiFinishesOnce(t *testing.T) {
	a := &Recorder{FinishImmediately: true}
	b := &Recorder{FinishImmediately: true}
	m := Multi{a, b}

	finished := 0
	m.Speak("Fahren Sie bitte links.", func() { finished++ })
	assert.Equal(t, 1, finished)
	assert.Equal(t, []string{"Fahren Sie bitte links."}, a.Lines())
	assert.Equal(t, []string{"Fahren Sie bitte links."}, b.Lines())

	m.Stop()
	assert.Equal(t, 1, a.Stops())
	assert.Equal(t, 1, b.Stops())
}

func TestMultiIsSpeaking(t *testing.T) {
	slow := &Recorder{}
	m := Multi{Nop{}, slow}
	assert.False(t, m.IsSpeaking())
	m.Speak("x", nil)
	assert.True(t, m.IsSpeaking())
	m.Stop()
	assert.False(t, m.IsSpeaking())
}

func TestExecSpeakerCommand(t *testing.T) {
	s := NewExecSpeaker("/usr/bin/espeak-ng", "-v", "de", TextPlaceholder)
	path, args := s.Command("Halten Sie hier.")
	assert.Equal(t, "/usr/bin/espeak-ng", path)
	assert.Equal(t, []string{"-v", "de", "Halten Sie hier."}, args)

	s = NewExecSpeaker("say", "-v", "Anna")
	_, args = s.Command("Wenden Sie.")
	assert.Equal(t, []string{"-v", "Anna", "Wenden Sie."}, args)
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecSpeakerFinishes(t *testing.T) {
	sh := requireShell(t)
	s := NewExecSpeaker(sh, "-c", "exit 0", TextPlaceholder)

	done := make(chan struct{})
	s.Speak("Hallo", func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("onFinish was not called")
	}
	assert.Eventually(t, func() bool { return !s.IsSpeaking() }, time.Second, 10*time.Millisecond)
}

func TestExecSpeakerStop(t *testing.T) {
	sh := requireShell(t)
	s := NewExecSpeaker(sh, "-c", "sleep 5", TextPlaceholder)

	finished := make(chan struct{}, 1)
	s.Speak("Hallo", func() { finished <- struct{}{} })
	assert.True(t, s.IsSpeaking())

	s.Stop()
	assert.False(t, s.IsSpeaking())
	select {
	case <-finished:
		t.Fatal("stopped utterance must not report finish")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestExecSpeakerFailureIsSilent(t *testing.T) {
	sh := requireShell(t)
	s := NewExecSpeaker(sh, "-c", "exit 3", TextPlaceholder)

	finished := make(chan struct{}, 1)
	s.Speak("Hallo", func() { finished <- struct{}{} })
	assert.Eventually(t, func() bool { return !s.IsSpeaking() }, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, finished)
}

func withLookPath(t *testing.T, found ...string) {
	t.Helper()
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/opt/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestDetect(t *testing.T) {
	withLookPath(t, "espeak", "say")
	s, ok := Detect("").(*ExecSpeaker)
	require.True(t, ok)
	path, args := s.Command("Hallo")
	assert.Equal(t, "/opt/bin/espeak", path)
	assert.Equal(t, []string{"-v", "de", "-s", "150", "Hallo"}, args)
	assert.Equal(t, []string{"espeak", "say"}, Available())
}

func TestDetectPrefersConfiguredCommand(t *testing.T) {
	withLookPath(t, "espeak-ng", "piper-say")
	s, ok := Detect("piper-say --lang de").(*ExecSpeaker)
	require.True(t, ok)
	path, args := s.Command("Hallo")
	assert.Equal(t, "/opt/bin/piper-say", path)
	assert.Equal(t, []string{"--lang", "de", "Hallo"}, args)
}

func TestDetectFallsBackToNop(t *testing.T) {
	withLookPath(t)
	assert.Equal(t, Nop{}, Detect("missing-tts"))
	assert.Empty(t, Available())

	_, err := ParseCommand("   ")
	assert.Error(t, err)
}
