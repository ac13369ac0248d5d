package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"pangandash/pkg/contracts/domain"
)

// Format is the container format of an upload.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source is one uploaded file.
type Source struct {
	Filename string
	MIMEType string
	Data     []byte
}

// LoadOptions configures how a file becomes a table.
type LoadOptions struct {
	// HeaderRow is the 0-based row holding the column names. Rows above it are dropped.
	HeaderRow int
	// Sheet selects a worksheet; empty means the first one.
	Sheet string
	// FallbackEncoding decodes CSV files that are not valid UTF-8.
	FallbackEncoding string
}

// DefaultLoadOptions returns the options used when a request does not override them.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		HeaderRow:        0,
		FallbackEncoding: "windows-1252",
	}
}

// TableLoader turns an upload into a raw (not yet normalized) table.
type TableLoader interface {
	Load(ctx context.Context, kind domain.TableKind, src Source, opts LoadOptions) (*domain.Table, error)
}

// FileLoader reads CSV and spreadsheet uploads.
type FileLoader struct {
	logger *slog.Logger
}

// NewFileLoader creates a loader.
func NewFileLoader(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLoader{logger: logger.With(slog.String("component", "loader"))}
}

// Load parses src into a table whose column count equals the header width.
func (l *FileLoader) Load(ctx context.Context, kind domain.TableKind, src Source, opts LoadOptions) (*domain.Table, error) {
	start := time.Now()

	if len(bytes.TrimSpace(src.Data)) == 0 {
		return nil, NewLoadError(LoadEmptyFile, src.Filename, ErrEmptyFile)
	}

	format, err := DetectFormat(src.Filename, src.MIMEType)
	if err != nil {
		return nil, NewLoadError(LoadUnsupportedFormat, src.Filename, err)
	}

	var grid [][]string
	switch format {
	case FormatCSV:
		grid, err = readCSV(src, opts)
	case FormatSpreadsheet:
		grid, err = readSpreadsheet(src, opts)
	}
	if err != nil {
		return nil, err
	}

	table, err := BuildTable(src.Filename, kind, grid, opts.HeaderRow)
	if err != nil {
		return nil, NewLoadError(LoadMissingHeader, src.Filename, err)
	}

	l.logger.InfoContext(ctx, "table loaded",
		slog.String("file", src.Filename),
		slog.String("kind", string(kind)),
		slog.String("format", string(format)),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", table.Len()),
		slog.Duration("duration", time.Since(start)))

	return table, nil
}

// DetectFormat picks a parser from the file extension, then the declared MIME type.
func DetectFormat(filename, mimeType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatSpreadsheet, nil
	}

	if mimeType != "" {
		mediaType, _, err := mime.ParseMediaType(mimeType)
		if err == nil {
			switch mediaType {
			case "text/csv", "text/plain", "application/csv", "text/tab-separated-values":
				return FormatCSV, nil
			case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/vnd.ms-excel.sheet.macroenabled.12":
				return FormatSpreadsheet, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
}

// decodeText returns UTF-8 text, decoding with the fallback charset when the
// bytes are not valid UTF-8.
func decodeText(data []byte, fallback string) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}

	enc, err := lookupEncoding(fallback)
	if err != nil {
		return nil, err
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode as %s: %w", fallback, err)
	}
	return decoded, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	}
	return nil, fmt.Errorf("unknown fallback encoding %q", name)
}

// sniffDelimiter picks the most frequent separator on the header line. Lines
// above the header are ignored; up to two data lines break ties.
func sniffDelimiter(text []byte, headerRow int) rune {
	candidates := []rune{',', ';', '\t'}

	// encoding/csv skips empty lines, so they do not count towards headerRow.
	var lines [][]byte
	for _, line := range bytes.Split(text, []byte{'\n'}) {
		if len(bytes.TrimRight(line, "\r")) > 0 {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ','
	}
	if headerRow < 0 || headerRow >= len(lines) {
		headerRow = 0
	}
	lines = lines[headerRow:]
	if len(lines) > 3 {
		lines = lines[:3]
	}

	header := countSeparators(lines[0])
	best, tied := ',', false
	for _, c := range candidates {
		switch {
		case header[c] > header[best]:
			best, tied = c, false
		case c != best && header[c] == header[best]:
			tied = true
		}
	}
	if !tied && header[best] > 0 {
		return best
	}

	// Tie on the header: prefer the candidate that also splits the data lines.
	totals := make(map[rune]int, len(candidates))
	for _, line := range lines {
		for r, n := range countSeparators(line) {
			totals[r] += n
		}
	}
	best = ','
	for _, c := range candidates {
		if header[c] < header[best] {
			continue
		}
		if header[c] > header[best] || totals[c] > totals[best] {
			best = c
		}
	}
	return best
}

// countSeparators counts separator candidates outside quoted fields.
func countSeparators(line []byte) map[rune]int {
	counts := make(map[rune]int, 3)
	inQuotes := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case r == ',' || r == ';' || r == '\t':
			counts[r]++
		}
	}
	return counts
}

func readCSV(src Source, opts LoadOptions) ([][]string, error) {
	text, err := decodeText(src.Data, opts.FallbackEncoding)
	if err != nil {
		return nil, NewLoadError(LoadEncoding, src.Filename, err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	if strings.EqualFold(filepath.Ext(src.Filename), ".tsv") {
		reader.Comma = '\t'
	} else {
		reader.Comma = sniffDelimiter(text, opts.HeaderRow)
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewLoadError(LoadMalformed, src.Filename, err)
		}
		grid = append(grid, record)
	}
	return grid, nil
}

func readSpreadsheet(src Source, opts LoadOptions) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(src.Data))
	if err != nil {
		return nil, NewLoadError(LoadMalformed, src.Filename, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, NewLoadError(LoadMalformed, src.Filename, fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, NewLoadError(LoadMalformed, src.Filename, fmt.Errorf("sheet %q: %w", sheet, err))
	}
	return rows, nil
}

// BuildTable turns a raw grid into a table using the row at headerRow as the
// header. Blank header cells are named by position and duplicates get a
// numeric suffix. Rows with no content are skipped.
func BuildTable(name string, kind domain.TableKind, grid [][]string, headerRow int) (*domain.Table, error) {
	if headerRow < 0 {
		return nil, fmt.Errorf("%w: negative header row %d", ErrMissingHeader, headerRow)
	}
	if headerRow >= len(grid) || isBlankRow(grid[headerRow]) {
		return nil, fmt.Errorf("%w: row %d", ErrMissingHeader, headerRow)
	}

	table := domain.NewTable(name, kind, headerNames(grid[headerRow]))
	for _, record := range grid[headerRow+1:] {
		if isBlankRow(record) {
			continue
		}
		cells := make([]domain.Value, len(record))
		for i, raw := range record {
			if raw == "" {
				cells[i] = domain.Missing()
				continue
			}
			cells[i] = domain.Text(raw)
		}
		table.AppendRow(cells)
	}
	return table, nil
}

func headerNames(record []string) []string {
	names := make([]string, len(record))
	seen := make(map[string]int, len(record))
	for i, raw := range record {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Kolom %d", i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func isBlankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
