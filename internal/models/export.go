package models

import "time"

// ExportFormat enumerates supported roster export formats.
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
)

// Valid reports whether f is a supported format.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatXLSX || f == ExportFormatCSV
}

// Artifact is a rendered, downloadable file.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PublishedExport describes an export persisted behind a signed link.
type PublishedExport struct {
	Format    ExportFormat `json:"format"`
	Filename  string       `json:"filename"`
	Rows      int          `json:"rows"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}
