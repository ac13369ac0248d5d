package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pangandash/internal/dataprocessing"
	apierrors "pangandash/internal/errors"
	"pangandash/internal/exporter"
	"pangandash/internal/infrastructure"
	"pangandash/internal/session"
	"pangandash/internal/validation"
	ws "pangandash/internal/websocket"
	"pangandash/pkg/contracts/domain"
)

// Notifier pushes session updates to connected dashboards.
type Notifier interface {
	PublishSummary(ctx context.Context, summary domain.Summary)
	PublishTableLoaded(ctx context.Context, sessionID string, info ws.TableLoaded)
	CloseSession(sessionID string)
}

// SheetImporter reads a Google Sheets range as a raw table.
type SheetImporter interface {
	ReadTable(ctx context.Context, kind domain.TableKind, spreadsheetID, readRange string, headerRow int) (*domain.Table, error)
}

// DashboardDeps are the collaborators of a DashboardService. Notifier, Sheets,
// Validator and Metrics are optional.
type DashboardDeps struct {
	Pipeline  *dataprocessing.Pipeline
	Store     session.Store
	Notifier  Notifier
	Sheets    SheetImporter
	Validator *validation.FileValidator
	Exporter  *exporter.Exporter
	Metrics   *infrastructure.BusinessMetrics
	Logger    *slog.Logger
}

// DashboardOptions tunes request defaults.
type DashboardOptions struct {
	Load          dataprocessing.LoadOptions
	MaxTopN       int
	SheetsTimeout time.Duration
}

// DashboardService owns the upload, analysis and export flows of a session.
type DashboardService struct {
	pipeline  *dataprocessing.Pipeline
	store     session.Store
	notifier  Notifier
	sheets    SheetImporter
	validator *validation.FileValidator
	exporter  *exporter.Exporter
	metrics   *infrastructure.BusinessMetrics
	opts      DashboardOptions
	logger    *slog.Logger
	now       func() time.Time

	// Serializes read-modify-write of a single session.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// SessionInfo is returned when a session is created.
type SessionInfo struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   domain.Summary `json:"summary"`
}

// UploadRequest is one file posted for a table kind.
type UploadRequest struct {
	SessionID string
	Kind      string
	Filename  string
	MIMEType  string
	Data      []byte
	// HeaderRow overrides the configured header offset when set.
	HeaderRow *int
	Sheet     string
}

// SheetImportRequest imports a table from Google Sheets.
type SheetImportRequest struct {
	SessionID     string `json:"-"`
	Kind          string `json:"-" validate:"tablekind"`
	SpreadsheetID string `json:"spreadsheet_id" validate:"required"`
	Range         string `json:"range" validate:"required"`
	HeaderRow     *int   `json:"header_row,omitempty" validate:"omitempty,gte=0"`
}

// UploadResult describes the table that replaced the session slot.
type UploadResult struct {
	SessionID string                     `json:"session_id"`
	Kind      domain.TableKind           `json:"kind"`
	Source    string                     `json:"source"`
	Digest    string                     `json:"digest,omitempty"`
	Rows      int                        `json:"rows"`
	Columns   []string                   `json:"columns"`
	Report    domain.NormalizationReport `json:"report"`
	Warnings  []domain.Warning           `json:"warnings"`
	Summary   domain.Summary             `json:"summary"`
}

// TableView is the normalized table behind a dashboard page.
type TableView struct {
	Kind      domain.TableKind           `json:"kind"`
	Title     string                     `json:"title"`
	Source    string                     `json:"source"`
	LoadedAt  time.Time                  `json:"loaded_at"`
	Filter    domain.FilterSelection     `json:"filter"`
	TotalRows int                        `json:"total_rows"`
	Matched   int                        `json:"matched_rows"`
	Columns   []string                   `json:"columns"`
	Rows      [][]domain.Value           `json:"rows"`
	Report    domain.NormalizationReport `json:"report"`
	Warnings  []domain.Warning           `json:"warnings"`
}

// AnalyzeRequest selects rows and optionally overrides the top-N size.
type AnalyzeRequest struct {
	Filter domain.FilterSelection
	TopN   int
}

// AggregatesView holds every aggregation result for a page.
type AggregatesView struct {
	Kind     domain.TableKind         `json:"kind"`
	Filter   domain.FilterSelection   `json:"filter"`
	Rows     int                      `json:"rows"`
	Results  []domain.AggregateResult `json:"results"`
	Warnings []domain.Warning         `json:"warnings"`
}

// OptionsView lists the distinct values of a selector column.
type OptionsView struct {
	Kind   domain.TableKind `json:"kind"`
	Column string           `json:"column"`
	Values []string         `json:"values"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewDashboardService creates the service.
func NewDashboardService(deps DashboardDeps, opts DashboardOptions) *DashboardService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exp := deps.Exporter
	if exp == nil {
		exp = exporter.New(exporter.Options{}, logger)
	}
	if opts.SheetsTimeout <= 0 {
		opts.SheetsTimeout = 30 * time.Second
	}
	return &DashboardService{
		pipeline:  deps.Pipeline,
		store:     deps.Store,
		notifier:  deps.Notifier,
		sheets:    deps.Sheets,
		validator: deps.Validator,
		exporter:  exp,
		metrics:   deps.Metrics,
		opts:      opts,
		logger:    logger.With(slog.String("service", "dashboard")),
		now:       func() time.Time { return time.Now().UTC() },
		locks:     make(map[string]*sync.Mutex),
	}
}

// Catalog returns the static column and group configuration.
func (s *DashboardService) Catalog() *dataprocessing.Catalog {
	return s.pipeline.Catalog()
}

// CreateSession starts an empty dashboard session.
func (s *DashboardService) CreateSession(ctx context.Context) (*SessionInfo, error) {
	dc, err := s.store.Create(ctx)
	if err != nil {
		return nil, apierrors.NewStorageError("create session", err)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}

	s.logger.InfoContext(ctx, "Session created", slog.String("session_id", dc.SessionID))
	return &SessionInfo{
		SessionID: dc.SessionID,
		CreatedAt: dc.CreatedAt,
		Summary:   dataprocessing.Summarize(dc),
	}, nil
}

// Summary returns the metric cards of a session.
func (s *DashboardService) Summary(ctx context.Context, sessionID string) (domain.Summary, error) {
	dc, err := s.context(ctx, sessionID)
	if err != nil {
		return domain.Summary{}, err
	}
	return dataprocessing.Summarize(dc), nil
}

// DeleteSession drops a session and disconnects its dashboards.
func (s *DashboardService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return sessionError(sessionID, err)
	}
	s.SessionExpired(sessionID)
	s.logger.InfoContext(ctx, "Session deleted", slog.String("session_id", sessionID))
	return nil
}

// SessionExpired releases what the service holds for a session that is gone.
// The memory store calls it from its janitor.
func (s *DashboardService) SessionExpired(sessionID string) {
	s.locksMu.Lock()
	delete(s.locks, sessionID)
	s.locksMu.Unlock()

	if s.notifier != nil {
		s.notifier.CloseSession(sessionID)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// Upload loads, normalizes and stores one file. A load failure leaves the
// session unchanged.
func (s *DashboardService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if s.validator != nil {
		if err := s.validator.ValidateUpload(req.Filename, int64(len(req.Data))); err != nil {
			return nil, err
		}
	}
	// Fail fast on an unknown session before parsing.
	if _, err := s.context(ctx, req.SessionID); err != nil {
		return nil, err
	}

	opts := s.opts.Load
	if req.HeaderRow != nil {
		opts.HeaderRow = *req.HeaderRow
	}
	if req.Sheet != "" {
		opts.Sheet = req.Sheet
	}

	format := "unknown"
	if f, err := dataprocessing.DetectFormat(req.Filename, req.MIMEType); err == nil {
		format = string(f)
	}

	start := time.Now()
	lt, err := s.pipeline.Ingest(ctx, kind, dataprocessing.Source{
		Filename: req.Filename,
		MIMEType: req.MIMEType,
		Data:     req.Data,
	}, opts)
	if err != nil {
		s.recordFailure(ctx, kind, format, start, err)
		s.logger.WarnContext(ctx, "Upload rejected",
			slog.String("session_id", req.SessionID),
			slog.String("kind", string(kind)),
			slog.String("file", req.Filename),
			slog.String("error", err.Error()))
		return nil, parseFailure(kind, req.Filename, err)
	}

	return s.commit(ctx, req.SessionID, kind, lt, format, start)
}

// ImportSheet replaces a table slot with a Google Sheets range.
func (s *DashboardService) ImportSheet(ctx context.Context, req SheetImportRequest) (*UploadResult, error) {
	if s.sheets == nil {
		return nil, apierrors.ErrSheetsDisabled
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.context(ctx, req.SessionID); err != nil {
		return nil, err
	}

	headerRow := s.opts.Load.HeaderRow
	if req.HeaderRow != nil {
		headerRow = *req.HeaderRow
	}

	start := time.Now()
	readCtx, cancel := context.WithTimeout(ctx, s.opts.SheetsTimeout)
	defer cancel()

	table, err := s.sheets.ReadTable(readCtx, kind, req.SpreadsheetID, req.Range, headerRow)
	if err != nil {
		s.recordFailure(ctx, kind, "sheets", start, err)
		return nil, parseFailure(kind, req.SpreadsheetID+"!"+req.Range, err)
	}

	lt, err := s.pipeline.Prepare(ctx, kind, table, table.Name)
	if err != nil {
		s.recordFailure(ctx, kind, "sheets", start, err)
		return nil, err
	}
	return s.commit(ctx, req.SessionID, kind, lt, "sheets", start)
}

// commit stores lt in the session slot and notifies subscribers.
func (s *DashboardService) commit(ctx context.Context, sessionID string, kind domain.TableKind, lt *domain.LoadedTable, format string, start time.Time) (*UploadResult, error) {
	unlock := s.lock(sessionID)
	dc, err := s.context(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	if err := dc.SetTable(kind, lt, s.now()); err != nil {
		unlock()
		return nil, apierrors.UnknownTableKind(string(kind))
	}
	if err := s.store.Save(ctx, dc); err != nil {
		unlock()
		return nil, sessionError(sessionID, err)
	}
	unlock()

	coerced := 0
	for _, n := range lt.Report.Coerced {
		coerced += n
	}
	infrastructure.RecordUpload(ctx, s.metrics, infrastructure.UploadRecord{
		Kind:           string(kind),
		Format:         format,
		Rows:           lt.Table.Len(),
		MissingColumns: len(lt.Report.Absent),
		CoercedCells:   coerced,
		Duration:       time.Since(start),
	})

	summary := dataprocessing.Summarize(dc)
	if s.notifier != nil {
		s.notifier.PublishTableLoaded(ctx, sessionID, ws.TableLoaded{
			Kind:     kind,
			Source:   lt.Source,
			Rows:     lt.Table.Len(),
			Warnings: len(lt.Warnings),
		})
		s.notifier.PublishSummary(ctx, summary)
	}

	s.logger.InfoContext(ctx, "Table loaded",
		slog.String("session_id", sessionID),
		slog.String("kind", string(kind)),
		slog.String("source", lt.Source),
		slog.Int("rows", lt.Table.Len()),
		slog.Int("warnings", len(lt.Warnings)),
		slog.Duration("duration", time.Since(start)))

	warnings := lt.Warnings
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	return &UploadResult{
		SessionID: sessionID,
		Kind:      kind,
		Source:    lt.Source,
		Digest:    lt.Digest,
		Rows:      lt.Table.Len(),
		Columns:   lt.Table.Columns,
		Report:    lt.Report,
		Warnings:  warnings,
		Summary:   summary,
	}, nil
}

// Table returns the normalized table, filtered by sel.
func (s *DashboardService) Table(ctx context.Context, sessionID, kindSlug string, sel domain.FilterSelection) (*TableView, error) {
	kind, lt, err := s.loaded(ctx, sessionID, kindSlug)
	if err != nil {
		return nil, err
	}

	filtered, filterWarnings := dataprocessing.Select(lt.Table, sel)
	warnings := make([]domain.Warning, 0, len(lt.Warnings)+len(filterWarnings))
	warnings = append(warnings, lt.Warnings...)
	warnings = append(warnings, filterWarnings...)

	return &TableView{
		Kind:      kind,
		Title:     kind.Title(),
		Source:    lt.Source,
		LoadedAt:  lt.LoadedAt,
		Filter:    sel,
		TotalRows: lt.Table.Len(),
		Matched:   filtered.Len(),
		Columns:   filtered.Columns,
		Rows:      filtered.Rows,
		Report:    lt.Report,
		Warnings:  warnings,
	}, nil
}

// Aggregates evaluates every aggregation group of the kind on the selected rows.
func (s *DashboardService) Aggregates(ctx context.Context, sessionID, kindSlug string, req AnalyzeRequest) (*AggregatesView, error) {
	if err := s.checkTopN(req.TopN); err != nil {
		return nil, err
	}
	kind, lt, err := s.loaded(ctx, sessionID, kindSlug)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	filtered, results, warnings, err := s.pipeline.AnalyzeTop(ctx, kind, lt.Table, req.Filter, req.TopN)
	if err != nil {
		return nil, apierrors.NewAppError(apierrors.ErrTypeConfig, "analyze", err)
	}
	infrastructure.RecordAnalysis(ctx, s.metrics, string(kind), time.Since(start))

	if warnings == nil {
		warnings = []domain.Warning{}
	}
	return &AggregatesView{
		Kind:     kind,
		Filter:   req.Filter,
		Rows:     filtered.Len(),
		Results:  results,
		Warnings: warnings,
	}, nil
}

// Options lists the distinct values of column for a filter selector.
func (s *DashboardService) Options(ctx context.Context, sessionID, kindSlug, column string) (*OptionsView, error) {
	kind, lt, err := s.loaded(ctx, sessionID, kindSlug)
	if err != nil {
		return nil, err
	}
	values, ok := dataprocessing.DistinctValues(lt.Table, column).Get()
	if !ok {
		return nil, columnNotFound(kind, column)
	}
	return &OptionsView{Kind: kind, Column: column, Values: values}, nil
}

// Export renders the selected rows and their aggregates as a download.
func (s *DashboardService) Export(ctx context.Context, sessionID, kindSlug string, format exporter.Format, req AnalyzeRequest) (*ExportFile, error) {
	if err := s.checkTopN(req.TopN); err != nil {
		return nil, err
	}
	kind, lt, err := s.loaded(ctx, sessionID, kindSlug)
	if err != nil {
		return nil, err
	}

	filtered, results, _, err := s.pipeline.AnalyzeTop(ctx, kind, lt.Table, req.Filter, req.TopN)
	if err != nil {
		return nil, apierrors.NewAppError(apierrors.ErrTypeConfig, "analyze", err)
	}

	var buf bytes.Buffer
	if err := s.exporter.Export(ctx, &buf, format, exporter.Dataset{
		Kind:    kind,
		Table:   filtered,
		Results: results,
	}); err != nil {
		return nil, apierrors.NewAppError(apierrors.ErrTypeStorage, "export", err)
	}

	return &ExportFile{
		Filename:    exporter.Filename(kind, format, s.now()),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func (s *DashboardService) checkTopN(n int) error {
	if n < 0 || (s.opts.MaxTopN > 0 && n > s.opts.MaxTopN) {
		return apierrors.ErrValidation("top_n", fmt.Sprintf("must be between 1 and %d", s.opts.MaxTopN))
	}
	return nil
}

func (s *DashboardService) context(ctx context.Context, sessionID string) (*domain.DashboardContext, error) {
	if sessionID == "" {
		return nil, apierrors.ErrValidation("session_id", "is required")
	}
	dc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, sessionError(sessionID, err)
	}
	return dc, nil
}

// loaded returns the table in the kind's slot of a session.
func (s *DashboardService) loaded(ctx context.Context, sessionID, kindSlug string) (domain.TableKind, *domain.LoadedTable, error) {
	kind, err := parseKind(kindSlug)
	if err != nil {
		return "", nil, err
	}
	dc, err := s.context(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	lt, ok := dc.Table(kind).Get()
	if !ok || lt == nil || lt.Table == nil {
		return "", nil, apierrors.TableNotLoaded(string(kind))
	}
	return kind, lt, nil
}

func (s *DashboardService) lock(sessionID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[sessionID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// parseFailure tags a load error with the table slot and source it was meant
// for. Other errors pass through unchanged.
func parseFailure(kind domain.TableKind, source string, err error) error {
	var loadErr *dataprocessing.LoadError
	if !errors.As(err, &loadErr) {
		return err
	}
	return apierrors.NewParsingError("table could not be read", err).
		WithContext("kind", string(kind)).
		WithContext("source", source)
}

func (s *DashboardService) recordFailure(ctx context.Context, kind domain.TableKind, format string, start time.Time, err error) {
	reason := "internal"
	var loadErr *dataprocessing.LoadError
	if errors.As(err, &loadErr) {
		reason = string(loadErr.Kind)
	}
	infrastructure.RecordUpload(ctx, s.metrics, infrastructure.UploadRecord{
		Kind:          string(kind),
		Format:        format,
		Duration:      time.Since(start),
		FailureReason: reason,
	})
}
