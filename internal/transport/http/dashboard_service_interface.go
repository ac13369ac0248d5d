package http

import (
	"context"

	"pangandash/internal/dataprocessing"
	"pangandash/internal/exporter"
	"pangandash/internal/services"
	"pangandash/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard operations the handlers use
type DashboardServiceInterface interface {
	Catalog() *dataprocessing.Catalog
	CreateSession(ctx context.Context) (*services.SessionInfo, error)
	Summary(ctx context.Context, sessionID string) (domain.Summary, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Upload(ctx context.Context, req services.UploadRequest) (*services.UploadResult, error)
	ImportSheet(ctx context.Context, req services.SheetImportRequest) (*services.UploadResult, error)
	Table(ctx context.Context, sessionID, kind string, sel domain.FilterSelection) (*services.TableView, error)
	Aggregates(ctx context.Context, sessionID, kind string, req services.AnalyzeRequest) (*services.AggregatesView, error)
	Options(ctx context.Context, sessionID, kind, column string) (*services.OptionsView, error)
	Export(ctx context.Context, sessionID, kind string, format exporter.Format, req services.AnalyzeRequest) (*services.ExportFile, error)
}
