// Package speech plays native-language lines through whatever text-to-speech
// the machine offers. Speaking is always best effort: without a usable
// engine every call degrades to a no-op.
package speech

import "sync"

// Speaker is a text-to-speech capability. Speak must not block: it replaces
// any utterance in progress and calls onFinish, if set, once the new
// utterance has been spoken to the end. Stop silences everything.
type Speaker interface {
	Speak(text string, onFinish func())
	Stop()
	IsSpeaking() bool
}

// Nop is a Speaker that says nothing.
type Nop struct{}

func (Nop) Speak(string, func()) {}
func (Nop) Stop()                {}
func (Nop) IsSpeaking() bool     { return false }

// Multi speaks through several speakers at once. onFinish runs once, when
// the first speaker finishes.
type Multi []Speaker

func (m Multi) Speak(text string, onFinish func()) {
	var once sync.Once
	finish := func() {
		if onFinish != nil {
			once.Do(onFinish)
		}
	}
	for _, s := range m {
		s.Speak(text, finish)
	}
}

func (m Multi) Stop() {
	for _, s := range m {
		s.Stop()
	}
}

func (m Multi) IsSpeaking() bool {
	for _, s := range m {
		if s.IsSpeaking() {
			return true
		}
	}
	return false
}

// Recorder is a Speaker that remembers what it was asked to say. It is
// used by tests and by dry runs.
type Recorder struct {
	// FinishImmediately makes Speak call onFinish before returning.
	FinishImmediately bool

	mu       sync.Mutex
	lines    []string
	stops    int
	speaking bool
}

func (r *Recorder) Speak(text string, onFinish func()) {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.speaking = !r.FinishImmediately
	r.mu.Unlock()
	if r.FinishImmediately && onFinish != nil {
		onFinish()
	}
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.speaking = false
}

func (r *Recorder) IsSpeaking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking
}

// Lines returns everything spoken so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Stops returns how often Stop was called.
func (r *Recorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}
