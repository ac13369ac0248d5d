package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pangandash/pkg/contracts/domain"
)

// Options configures an Exporter.
type Options struct {
	// BOM prefixes CSV output with a UTF-8 byte order mark.
	BOM bool
}

// Dataset is what gets exported: a (possibly filtered) table and the
// aggregation results computed from it.
type Dataset struct {
	Kind    domain.TableKind
	Table   *domain.Table
	Results []domain.AggregateResult
}

// Exporter writes datasets in any supported format.
type Exporter struct {
	opts   Options
	logger *slog.Logger
}

// New creates an exporter.
func New(opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{opts: opts, logger: logger.With(slog.String("component", "exporter"))}
}

// Export writes ds to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format Format, ds Dataset) error {
	if ds.Table == nil {
		return fmt.Errorf("export %s: no table", ds.Kind)
	}
	start := time.Now()

	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(w, ds.Table, CSVOptions{BOMPrefix: e.opts.BOM})
	case FormatXLSX:
		err = WriteXLSX(w, ds.Table, ds.Results)
	case FormatGeoJSON:
		err = WriteGeoJSON(w, ds.Results)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "Export failed",
			slog.String("kind", string(ds.Kind)),
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		return err
	}

	e.logger.InfoContext(ctx, "Export written",
		slog.String("kind", string(ds.Kind)),
		slog.String("format", string(format)),
		slog.Int("rows", ds.Table.Len()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// ExportFile writes ds to path, choosing the format from its extension.
func (e *Exporter) ExportFile(ctx context.Context, path string, ds Dataset) error {
	format, err := FormatFromFilename(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.Export(ctx, file, format, ds); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
