package models

import (
	"encoding/json"
	"testing"
)

func validExport() ProgressExport {
	return ProgressExport{
		Schema:       ExportSchema,
		ExportID:     "test-123",
		CreatedAtUTC: "2026-01-16T12:00:00Z",
		Device: ExportDevice{
			Platform:   "linux",
			AppVersion: "1.0.0",
		},
		Learned: []string{"dir-1", "park-2"},
	}
}

func TestProgressExport_Validate_Valid(t *testing.T) {
	export := validExport()
	if err := export.Validate(); err != nil {
		t.Errorf("expected valid export, got error: %v", err)
	}
}

func TestProgressExport_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ProgressExport)
		field  string
	}{
		{"invalid schema", func(e *ProgressExport) { e.Schema = "wrong.schema" }, "schema"},
		{"missing export id", func(e *ProgressExport) { e.ExportID = "" }, "export_id"},
		{"missing created", func(e *ProgressExport) { e.CreatedAtUTC = "" }, "created_at_utc"},
		{"invalid timestamp", func(e *ProgressExport) { e.CreatedAtUTC = "not-a-timestamp" }, "created_at_utc"},
		{"missing platform", func(e *ProgressExport) { e.Device.Platform = "" }, "device.platform"},
		{"empty id", func(e *ProgressExport) { e.Learned = []string{"dir-1", ""} }, "learned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export := validExport()
			tt.modify(&export)

			err := export.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			valErr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if valErr.Field != tt.field {
				t.Errorf("expected field '%s', got '%s'", tt.field, valErr.Field)
			}
		})
	}
}

func TestNewProgressExport_SortsAndNeverNil(t *testing.T) {
	export := NewProgressExport("exp-1", ExportDevice{Platform: "linux", AppVersion: "dev"}, []string{"b", "a"})
	if export.Learned[0] != "a" || export.Learned[1] != "b" {
		t.Errorf("expected sorted ids, got %v", export.Learned)
	}
	if err := export.Validate(); err != nil {
		t.Errorf("fresh export should validate: %v", err)
	}

	empty := NewProgressExport("exp-2", ExportDevice{Platform: "linux"}, nil)
	data, err := json.Marshal(empty)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["learned"].([]any); !ok {
		t.Errorf("learned should encode as an array, got %v", decoded["learned"])
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "test_field", Message: "is invalid"}
	expected := "test_field: is invalid"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
}

func TestNewImportReceipt(t *testing.T) {
	export := validExport()
	receipt := NewImportReceipt(&export, 1, true)

	if receipt.ExportID != "test-123" {
		t.Errorf("expected export_id 'test-123', got '%s'", receipt.ExportID)
	}
	if receipt.Learned != 2 {
		t.Errorf("expected learned 2, got %d", receipt.Learned)
	}
	if receipt.Added != 1 {
		t.Errorf("expected added 1, got %d", receipt.Added)
	}
	if receipt.Platform != "linux" {
		t.Errorf("expected platform 'linux', got '%s'", receipt.Platform)
	}
	if !receipt.Duplicate {
		t.Error("expected duplicate to be true")
	}
	if receipt.ReceivedAt == "" {
		t.Error("expected received_at to be set")
	}
}
