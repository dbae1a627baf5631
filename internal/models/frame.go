package models

import (
	"encoding/json"
	"time"
)

// FrameSchema identifies the frame envelope version.
const FrameSchema = "fahrprobe.frame.v1"

// Kind tells what a frame carries.
type Kind string

const (
	KindState Kind = "state"
	KindSpeak Kind = "speak"
)

// Frame is the envelope pushed to live clients and written to recordings
type Frame struct {
	SchemaVersion string  `json:"schema_version"`
	FrameID       string  `json:"frame_id"`
	Timestamp     string  `json:"ts"`
	Kind          Kind    `json:"kind"`
	Session       Session `json:"session"`
	State         *State  `json:"state,omitempty"`
	Speech        *Speech `json:"speech,omitempty"`
	Meta          Meta    `json:"meta"`
}

// Session identifies the scenario run a frame belongs to
type Session struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
}

// State is the scenario state at the moment the frame was taken.
// Values keep each attribute in its natural JSON shape.
type State struct {
	Status      string                     `json:"status"`
	Playing     bool                       `json:"playing"`
	CurrentStep int                        `json:"current_step"`
	Steps       int                        `json:"steps"`
	ElapsedMS   int64                      `json:"elapsed_ms"`
	Said        string                     `json:"said,omitempty"`
	Values      map[string]json.RawMessage `json:"values"`
}

// Speech is a line the client should speak aloud
type Speech struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Meta contains additional frame metadata
type Meta struct {
	Sequence int64 `json:"sequence"`
}

// NewFrame creates a new Frame with current timestamp
func NewFrame(frameID string, kind Kind, session Session, sequence int64) Frame {
	return Frame{
		SchemaVersion: FrameSchema,
		FrameID:       frameID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Kind:          kind,
		Session:       session,
		Meta: Meta{
			Sequence: sequence,
		},
	}
}

// Time parses the frame timestamp.
func (f *Frame) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, f.Timestamp)
}

// Validate checks the envelope and that the payload matches the kind
func (f *Frame) Validate() error {
	if f.SchemaVersion != FrameSchema {
		return &ValidationError{Field: "schema_version", Message: "must be '" + FrameSchema + "'"}
	}
	if f.FrameID == "" {
		return &ValidationError{Field: "frame_id", Message: "is required"}
	}
	if _, err := f.Time(); err != nil {
		return &ValidationError{Field: "ts", Message: "must be valid RFC3339 timestamp"}
	}
	if f.Session.Scenario == "" {
		return &ValidationError{Field: "session.scenario", Message: "is required"}
	}
	switch f.Kind {
	case KindState:
		if f.State == nil {
			return &ValidationError{Field: "state", Message: "is required for state frames"}
		}
	case KindSpeak:
		if f.Speech == nil || f.Speech.Text == "" {
			return &ValidationError{Field: "speech.text", Message: "is required for speak frames"}
		}
	default:
		return &ValidationError{Field: "kind", Message: "must be 'state' or 'speak'"}
	}
	return nil
}
