package compliance

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// ExportFormat represents the format for exporting a compliance
// report.
type ExportFormat string

const (
	// FormatJSON exports the report as indented JSON.
	FormatJSON ExportFormat = "json"

	// FormatCSV exports the violations as comma-separated values.
	FormatCSV ExportFormat = "csv"
)

// IsValid returns true if the export format is valid.
func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// String returns the string representation of the export format.
func (f ExportFormat) String() string {
	return string(f)
}

// FileExtension returns the file extension for the export format.
func (f ExportFormat) FileExtension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	default:
		return ""
	}
}

// Export serializes the report in the given format.
func Export(r *Report, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(r, "", "  ")
	case FormatCSV:
		return exportCSV(r)
	default:
		return nil, fmt.Errorf("export format %q is not valid", format)
	}
}

func exportCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"invariant", "severity", "entity_ids", "message"}); err != nil {
		return nil, err
	}
	for _, v := range r.Violations {
		record := []string{
			v.Invariant,
			v.Severity.String(),
			strings.Join(v.EntityIDs, ";"),
			v.Message,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
