package exporter

import (
	"fmt"
	"strings"
	"time"

	"pangandash/pkg/contracts/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat validates a format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatGeoJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FormatFromFilename picks the format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", fmt.Errorf("file %q has no extension", name)
	}
	ext := strings.ToLower(name[i+1:])
	if ext == "json" {
		return FormatGeoJSON, nil
	}
	return ParseFormat(ext)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename builds a download name such as "rumah-tangga-20240131.csv".
func Filename(kind domain.TableKind, f Format, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", kind, now.Format("20060102"), f)
}

// formatValue renders a cell for CSV output. Missing cells are empty.
func formatValue(v domain.Value) string {
	return v.String()
}
