package speech

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// TextPlaceholder marks where the spoken text goes in a command line. When
// absent the text is appended as the last argument.
const TextPlaceholder = "{text}"

var lookPath = exec.LookPath

// ExecSpeaker speaks by running a local TTS program once per utterance.
type ExecSpeaker struct {
	path string
	args []string

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	speaking bool
}

// NewExecSpeaker runs path with args for every utterance.
func NewExecSpeaker(path string, args ...string) *ExecSpeaker {
	return &ExecSpeaker{path: path, args: args}
}

// ParseCommand builds an ExecSpeaker from a command line such as
// "espeak-ng -v de -s 150 {text}". The program must be on PATH.
func ParseCommand(command string) (*ExecSpeaker, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("speech command is empty")
	}
	path, err := lookPath(fields[0])
	if err != nil {
		return nil, err
	}
	return NewExecSpeaker(path, fields[1:]...), nil
}

// Command returns the program and arguments used for text.
func (s *ExecSpeaker) Command(text string) (string, []string) {
	args := make([]string, 0, len(s.args)+1)
	placed := false
	for _, a := range s.args {
		if strings.Contains(a, TextPlaceholder) {
			a = strings.ReplaceAll(a, TextPlaceholder, text)
			placed = true
		}
		args = append(args, a)
	}
	if !placed {
		args = append(args, text)
	}
	return s.path, args
}

func (s *ExecSpeaker) Speak(text string, onFinish func()) {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.speaking = true
	path, args := s.Command(text)
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := exec.CommandContext(ctx, path, args...).Run()

		s.mu.Lock()
		current := gen == s.gen
		if current {
			s.speaking = false
			s.cancel = nil
		}
		s.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			slog.Debug("speech command failed", "command", path, "error", err)
			return
		}
		if onFinish != nil {
			onFinish()
		}
	}()
}

func (s *ExecSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *ExecSpeaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *ExecSpeaker) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.speaking = false
}

// Engine describes a known TTS program.
type Engine struct {
	Name string
	Args []string
}

// Engines are tried in order by Detect. All of them speak German at a
// slightly slowed rate.
var Engines = []Engine{
	{Name: "espeak-ng", Args: []string{"-v", "de", "-s", "150", TextPlaceholder}},
	{Name: "espeak", Args: []string{"-v", "de", "-s", "150", TextPlaceholder}},
	{Name: "say", Args: []string{"-v", "Anna", "-r", "165", TextPlaceholder}},
}

// Detect returns a speaker for command when set, otherwise for the first
// engine found on PATH. It falls back to Nop.
func Detect(command string) Speaker {
	if command != "" {
		s, err := ParseCommand(command)
		if err == nil {
			return s
		}
		slog.Warn("speech command unavailable, trying built-in engines", "command", command, "error", err)
	}
	for _, e := range Engines {
		if path, err := lookPath(e.Name); err == nil {
			slog.Debug("speech engine detected", "engine", e.Name, "path", path)
			return NewExecSpeaker(path, e.Args...)
		}
	}
	slog.Debug("no speech engine found, speech disabled")
	return Nop{}
}

// Available reports which known engines are on PATH.
func Available() []string {
	var found []string
	for _, e := range Engines {
		if _, err := lookPath(e.Name); err == nil {
			found = append(found, e.Name)
		}
	}
	return found
}
