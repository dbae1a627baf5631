package encoding

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fahrprobe/fahrprobe-cli/internal/models"
)

// ProtobufEncoder encodes frames as a google.protobuf.Struct. The struct
// mirrors the JSON envelope field for field, so any protobuf runtime can
// read it without a generated schema.
type ProtobufEncoder struct{}

func NewProtobufEncoder() *ProtobufEncoder {
	return &ProtobufEncoder{}
}

func (e *ProtobufEncoder) Encode(frame models.Frame) ([]byte, error) {
	pb, err := frameToProto(frame)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

func (e *ProtobufEncoder) ContentType() string {
	return "application/x-protobuf"
}

// DecodeProtobuf reverses ProtobufEncoder.Encode.
func DecodeProtobuf(data []byte) (models.Frame, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return models.Frame{}, fmt.Errorf("failed to unmarshal protobuf frame: %w", err)
	}
	raw, err := json.Marshal(pb.AsMap())
	if err != nil {
		return models.Frame{}, err
	}
	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return models.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return frame, nil
}

func frameToProto(f models.Frame) (*structpb.Struct, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	pb, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build protobuf struct: %w", err)
	}
	return pb, nil
}
