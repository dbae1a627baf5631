package encoding

import (
	"encoding/json"
	"fmt"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
)

// Format represents the encoding format
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatProtobuf, "proto":
		return FormatProtobuf, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or protobuf)", s)
}

// Encoder encodes frames to bytes
type Encoder interface {
	Encode(frame models.Frame) ([]byte, error)
	ContentType() string
}

// JSONEncoder encodes frames as JSON
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Encode(frame models.Frame) ([]byte, error) {
	return json.Marshal(frame)
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

// NewEncoder creates an encoder for the given format
func NewEncoder(format Format) Encoder {
	switch format {
	case FormatProtobuf:
		return NewProtobufEncoder()
	default:
		return NewJSONEncoder()
	}
}
