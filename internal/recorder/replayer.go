package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/timeline"
)

// Replayer reads and replays frames from an NDJSON file
type Replayer struct {
	filename   string
	speed      float64
	loop       bool
	clock      timeline.Clock
	frameCount int
	firstFrame *models.Frame
	loaded     bool
}

// NewReplayer creates a new replayer. speed scales the gaps between
// frames; values <= 0 mean 1.
func NewReplayer(filename string, speed float64, loop bool) *Replayer {
	if speed <= 0 {
		speed = 1
	}
	return &Replayer{
		filename: filename,
		speed:    speed,
		loop:     loop,
		clock:    timeline.RealClock{},
	}
}

// SetClock replaces the clock that times the gaps between frames.
func (r *Replayer) SetClock(clock timeline.Clock) {
	r.clock = clock
}

// loadMetadata reads the file once to cache count and first frame
func (r *Replayer) loadMetadata() error {
	if r.loaded {
		return nil
	}

	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := newScanner(file)
	r.frameCount = 0

	for scanner.Scan() {
		r.frameCount++
		if r.frameCount == 1 {
			var frame models.Frame
			if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
				return fmt.Errorf("failed to parse first frame: %w", err)
			}
			r.firstFrame = &frame
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	r.loaded = true
	return nil
}

// Replay reads frames and sends them to the output channel with timing
func (r *Replayer) Replay(ctx context.Context, output chan<- models.Frame) error {
	for {
		if err := r.replayOnce(ctx, output); err != nil {
			return err
		}

		if !r.loop {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

func (r *Replayer) replayOnce(ctx context.Context, output chan<- models.Frame) error {
	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	scanner := newScanner(file)
	var lastTimestamp time.Time
	lineNum := 0

	for scanner.Scan() {
		lineNum++

		var frame models.Frame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			return fmt.Errorf("failed to parse frame at line %d: %w", lineNum, err)
		}

		timestamp, err := frame.Time()
		if err != nil {
			return fmt.Errorf("failed to parse timestamp at line %d: %w", lineNum, err)
		}

		if lineNum > 1 {
			delay := time.Duration(float64(timestamp.Sub(lastTimestamp)) / r.speed)
			if delay > 0 {
				if err := r.wait(ctx, delay); err != nil {
					return err
				}
			}
		}
		lastTimestamp = timestamp

		select {
		case <-ctx.Done():
			return ctx.Err()
		case output <- frame:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return nil
}

func (r *Replayer) wait(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	timer := r.clock.AfterFunc(d, func() { close(done) })
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// CountFrames returns the number of frames in the recording
func (r *Replayer) CountFrames() (int, error) {
	if err := r.loadMetadata(); err != nil {
		return 0, err
	}
	return r.frameCount, nil
}

// GetFirstFrame returns the first frame in the recording
func (r *Replayer) GetFirstFrame() (*models.Frame, error) {
	if err := r.loadMetadata(); err != nil {
		return nil, err
	}
	if r.firstFrame == nil {
		return nil, fmt.Errorf("recording file is empty")
	}
	return r.firstFrame, nil
}

// newScanner allows lines up to 1 MiB.
func newScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return scanner
}
