package values

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// ExportFormat represents a supported output format for result sets
type ExportFormat struct {
	format string
}

// Supported export formats
const (
	FormatJSON      = "json"
	FormatYAML      = "yaml"
	FormatCSV       = "csv"
	FormatPlainText = "txt"
)

var (
	formatMimeTypes = map[string]string{
		FormatJSON:      "application/json",
		FormatYAML:      "application/yaml",
		FormatCSV:       "text/csv",
		FormatPlainText: "text/plain",
	}

	formatExtensions = map[string]string{
		FormatJSON:      ".json",
		FormatYAML:      ".yaml",
		FormatCSV:       ".csv",
		FormatPlainText: ".txt",
	}

	// Formats that can carry a nested result set
	structuredFormats = map[string]bool{
		FormatJSON: true,
		FormatYAML: true,
	}
)

// NewExportFormat creates a new ExportFormat value object with validation
func NewExportFormat(format string) (ExportFormat, error) {
	if format == "" {
		return ExportFormat{}, errors.NewValidationError("EMPTY_FORMAT",
			"export format cannot be empty")
	}

	normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if normalized == "yml" {
		normalized = FormatYAML
	}

	if _, ok := formatExtensions[normalized]; !ok {
		return ExportFormat{}, errors.NewValidationError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("export format '%s' is not supported", format))
	}

	return ExportFormat{format: normalized}, nil
}

// NewExportFormatFromFilename creates ExportFormat from a file extension
func NewExportFormatFromFilename(filename string) (ExportFormat, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ExportFormat{}, errors.NewValidationError("NO_EXTENSION",
			"filename must have an extension")
	}
	return NewExportFormat(ext)
}

// MustNewExportFormat creates ExportFormat and panics on error (for constants/tests)
func MustNewExportFormat(format string) ExportFormat {
	ef, err := NewExportFormat(format)
	if err != nil {
		panic(err)
	}
	return ef
}

func JSONFormat() ExportFormat {
	return MustNewExportFormat(FormatJSON)
}

func YAMLFormat() ExportFormat {
	return MustNewExportFormat(FormatYAML)
}

func CSVFormat() ExportFormat {
	return MustNewExportFormat(FormatCSV)
}

// String returns the format string
func (ef ExportFormat) String() string {
	return ef.format
}

// IsEmpty checks if the format is empty
func (ef ExportFormat) IsEmpty() bool {
	return ef.format == ""
}

// MimeType returns the MIME type for the format
func (ef ExportFormat) MimeType() string {
	if mimeType, ok := formatMimeTypes[ef.format]; ok {
		return mimeType
	}
	return "application/octet-stream"
}

// Extension returns the file extension for the format
func (ef ExportFormat) Extension() string {
	if extension, ok := formatExtensions[ef.format]; ok {
		return extension
	}
	return ".bin"
}

// IsStructured reports whether the format can hold nested result sets
func (ef ExportFormat) IsStructured() bool {
	return structuredFormats[ef.format]
}

// Filename joins base with the format's extension
func (ef ExportFormat) Filename(base string) string {
	return base + ef.Extension()
}

// MarshalJSON implements JSON marshaling
func (ef ExportFormat) MarshalJSON() ([]byte, error) {
	return json.Marshal(ef.format)
}

// UnmarshalJSON implements JSON unmarshaling
func (ef *ExportFormat) UnmarshalJSON(data []byte) error {
	var format string
	if err := json.Unmarshal(data, &format); err != nil {
		return err
	}

	exportFormat, err := NewExportFormat(format)
	if err != nil {
		return err
	}

	*ef = exportFormat
	return nil
}
