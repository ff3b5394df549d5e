package ingest

import "fmt"

// AlertKind classifies a non-fatal ingestion problem.
type AlertKind string

const (
	AlertInvalidFile      AlertKind = "invalid_file"
	AlertFileNotFound     AlertKind = "file_not_found"
	AlertInvalidExtension AlertKind = "invalid_extension"
	AlertFileTooLarge     AlertKind = "file_too_large"
	AlertReadError        AlertKind = "read_error"
	AlertEntityNotFound   AlertKind = "entity_not_found"
	AlertMissingColumns   AlertKind = "missing_columns"
)

// Alert reports a file or sheet that was skipped. Alerts travel alongside the
// records that were extracted successfully; they never abort the batch.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	File    string    `json:"file"`
	Sheet   string    `json:"sheet,omitempty"`
	Message string    `json:"message"`
	Missing []string  `json:"missing,omitempty"`
}

func (a Alert) String() string {
	if a.Sheet != "" {
		return fmt.Sprintf("%s: %s [%s]: %s", a.Kind, a.File, a.Sheet, a.Message)
	}
	return fmt.Sprintf("%s: %s: %s", a.Kind, a.File, a.Message)
}
