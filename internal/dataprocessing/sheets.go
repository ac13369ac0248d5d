package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"pangandash/pkg/contracts/domain"
)

// ErrSheetsDisabled is returned when no Google credentials are configured.
var ErrSheetsDisabled = errors.New("google sheets import is not configured")

// SheetsOptions configures access to the Google Sheets API.
type SheetsOptions struct {
	APIKey          string
	CredentialsFile string
}

// Enabled reports whether any credential is set.
func (o SheetsOptions) Enabled() bool {
	return o.APIKey != "" || o.CredentialsFile != ""
}

// SheetsReader imports a range of a Google spreadsheet as a raw table.
type SheetsReader struct {
	service *sheets.Service
	logger  *slog.Logger
}

// NewSheetsReader creates a reader. It returns ErrSheetsDisabled when opts carries no credentials.
func NewSheetsReader(ctx context.Context, opts SheetsOptions, logger *slog.Logger) (*SheetsReader, error) {
	if !opts.Enabled() {
		return nil, ErrSheetsDisabled
	}
	if logger == nil {
		logger = slog.Default()
	}

	var clientOpt option.ClientOption
	if opts.CredentialsFile != "" {
		credentialsJSON, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheets credentials: %w", err)
		}
		clientOpt = option.WithCredentialsJSON(credentialsJSON)
	} else {
		clientOpt = option.WithAPIKey(opts.APIKey)
	}

	service, err := sheets.NewService(ctx, clientOpt, option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsReader{
		service: service,
		logger:  logger.With(slog.String("component", "sheets_reader")),
	}, nil
}

// ReadTable fetches readRange (A1 notation) and builds a table with the header at headerRow.
func (r *SheetsReader) ReadTable(ctx context.Context, kind domain.TableKind, spreadsheetID, readRange string, headerRow int) (*domain.Table, error) {
	name := spreadsheetID + "!" + readRange

	resp, err := r.service.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, NewLoadError(LoadMalformed, name, fmt.Errorf("read from sheets: %w", err))
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		grid[i] = make([]string, len(row))
		for j, cell := range row {
			grid[i][j] = fmt.Sprint(cell)
		}
	}
	if len(grid) == 0 {
		return nil, NewLoadError(LoadEmptyFile, name, ErrEmptyFile)
	}

	table, err := BuildTable(name, kind, grid, headerRow)
	if err != nil {
		return nil, NewLoadError(LoadMissingHeader, name, err)
	}

	r.logger.InfoContext(ctx, "sheet imported",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.String("range", readRange),
		slog.Int("rows", table.Len()))
	return table, nil
}
