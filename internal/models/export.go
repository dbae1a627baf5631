package models

import (
	"slices"
	"time"
)

// ExportSchema identifies the progress export format.
const ExportSchema = "fahrprobe.progress.v1"

// ProgressExport is a portable copy of the learned command set
type ProgressExport struct {
	Schema       string       `json:"schema"`
	ExportID     string       `json:"export_id"`
	CreatedAtUTC string       `json:"created_at_utc"`
	Device       ExportDevice `json:"device"`
	Learned      []string     `json:"learned"`
}

// ExportDevice contains device metadata
type ExportDevice struct {
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
}

// NewProgressExport builds an export of the given command ids.
func NewProgressExport(exportID string, device ExportDevice, learned []string) ProgressExport {
	ids := slices.Clone(learned)
	slices.Sort(ids)
	if ids == nil {
		ids = []string{}
	}
	return ProgressExport{
		Schema:       ExportSchema,
		ExportID:     exportID,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Device:       device,
		Learned:      ids,
	}
}

// Validate checks if the export payload is valid according to schema v1
func (e *ProgressExport) Validate() error {
	if e.Schema != ExportSchema {
		return &ValidationError{Field: "schema", Message: "must be '" + ExportSchema + "'"}
	}
	if e.ExportID == "" {
		return &ValidationError{Field: "export_id", Message: "is required"}
	}
	if e.CreatedAtUTC == "" {
		return &ValidationError{Field: "created_at_utc", Message: "is required"}
	}
	if _, err := time.Parse(time.RFC3339, e.CreatedAtUTC); err != nil {
		return &ValidationError{Field: "created_at_utc", Message: "must be valid RFC3339 timestamp"}
	}
	if e.Device.Platform == "" {
		return &ValidationError{Field: "device.platform", Message: "is required"}
	}
	for _, id := range e.Learned {
		if id == "" {
			return &ValidationError{Field: "learned", Message: "must not contain empty ids"}
		}
	}
	return nil
}

// ValidationError represents a schema validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ImportReceipt summarises a received progress export
type ImportReceipt struct {
	ExportID   string `json:"export_id"`
	ReceivedAt string `json:"received_at"`
	Learned    int    `json:"learned"`
	Added      int    `json:"added"`
	Platform   string `json:"platform"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// NewImportReceipt creates a receipt for an applied export
func NewImportReceipt(export *ProgressExport, added int, duplicate bool) ImportReceipt {
	return ImportReceipt{
		ExportID:   export.ExportID,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Learned:    len(export.Learned),
		Added:      added,
		Platform:   export.Device.Platform,
		Duplicate:  duplicate,
	}
}
