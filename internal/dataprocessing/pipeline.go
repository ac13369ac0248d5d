package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pangandash/pkg/contracts/domain"
)

const tracerName = "pangandash/dataprocessing"

// Pipeline ties the loader, normalizer, selector and aggregator to the catalog.
type Pipeline struct {
	loader  TableLoader
	catalog *Catalog
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewPipeline creates a pipeline. A nil catalog means DefaultCatalog.
func NewPipeline(loader TableLoader, catalog *Catalog, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Pipeline{
		loader:  loader,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "pipeline")),
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Catalog returns the static configuration in use.
func (p *Pipeline) Catalog() *Catalog {
	return p.catalog
}

// Ingest loads and normalizes one upload.
func (p *Pipeline) Ingest(ctx context.Context, kind domain.TableKind, src Source, opts LoadOptions) (*domain.LoadedTable, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.ingest", trace.WithAttributes(
		attribute.String("table.kind", string(kind)),
		attribute.String("file.name", src.Filename),
		attribute.Int("file.size", len(src.Data)),
	))
	defer span.End()

	table, err := p.loader.Load(ctx, kind, src, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	lt, err := p.Prepare(ctx, kind, table, src.Filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare failed")
		return nil, err
	}
	lt.Digest = Fingerprint(src.Data)
	return lt, nil
}

// Prepare normalizes an already loaded table.
func (p *Pipeline) Prepare(ctx context.Context, kind domain.TableKind, table *domain.Table, source string) (*domain.LoadedTable, error) {
	schema, ok := p.catalog.Schema(kind)
	if !ok {
		return nil, fmt.Errorf("no schema for table kind %q", kind)
	}

	_, span := p.tracer.Start(ctx, "pipeline.normalize")
	table.Kind = kind
	report := Normalize(table, schema.Columns)
	span.SetAttributes(
		attribute.Int("columns.normalized", len(report.Normalized)),
		attribute.Int("columns.absent", len(report.Absent)),
	)
	span.End()

	warnings := make([]domain.Warning, 0, len(report.Absent))
	for _, name := range report.Absent {
		warnings = append(warnings, domain.MissingColumnWarning(name))
	}

	p.logger.InfoContext(ctx, "table normalized",
		slog.String("kind", string(kind)),
		slog.String("source", source),
		slog.Int("rows", table.Len()),
		slog.Any("absent_columns", report.Absent),
		slog.Any("coerced_cells", report.Coerced))

	return &domain.LoadedTable{
		Table:    table,
		Source:   source,
		LoadedAt: p.now(),
		Report:   report,
		Warnings: warnings,
	}, nil
}

// Analyze filters t and evaluates every aggregation group of its kind.
func (p *Pipeline) Analyze(ctx context.Context, kind domain.TableKind, t *domain.Table, sel domain.FilterSelection) (*domain.Table, []domain.AggregateResult, []domain.Warning, error) {
	return p.AnalyzeTop(ctx, kind, t, sel, 0)
}

// AnalyzeTop is Analyze with the N of every top_n group replaced by topN.
// A topN of zero or less keeps the catalog value.
func (p *Pipeline) AnalyzeTop(ctx context.Context, kind domain.TableKind, t *domain.Table, sel domain.FilterSelection, topN int) (*domain.Table, []domain.AggregateResult, []domain.Warning, error) {
	schema, ok := p.catalog.Schema(kind)
	if !ok {
		return nil, nil, nil, fmt.Errorf("no schema for table kind %q", kind)
	}

	_, span := p.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.String("table.kind", string(kind)),
		attribute.Int("groups", len(schema.Groups)),
		attribute.Int("top_n", topN),
	))
	defer span.End()

	groups := schema.Groups
	if topN > 0 {
		groups = make([]domain.AggregationGroup, len(schema.Groups))
		copy(groups, schema.Groups)
		for i := range groups {
			if groups[i].Op == domain.OpTopN {
				groups[i].N = topN
			}
		}
	}

	filtered, warnings := Select(t, sel)
	results := AggregateAll(filtered, groups)
	span.SetAttributes(attribute.Int("rows.selected", filtered.Len()))
	return filtered, results, warnings, nil
}
