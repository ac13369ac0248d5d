package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/internal/config"
	"pangandash/internal/dataprocessing"
	apierrors "pangandash/internal/errors"
	"pangandash/internal/exporter"
	"pangandash/internal/session"
	"pangandash/internal/shared/testutil"
	"pangandash/internal/validation"
	ws "pangandash/internal/websocket"
	"pangandash/pkg/contracts/domain"
)

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []domain.Summary
	loaded    []ws.TableLoaded
	closed    []string
}

func (n *recordingNotifier) PublishSummary(_ context.Context, s domain.Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, s)
}

func (n *recordingNotifier) PublishTableLoaded(_ context.Context, _ string, info ws.TableLoaded) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaded = append(n.loaded, info)
}

func (n *recordingNotifier) CloseSession(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, id)
}

type fakeSheets struct {
	table *domain.Table
	err   error
	got   struct {
		id, rng   string
		headerRow int
	}
}

func (f *fakeSheets) ReadTable(_ context.Context, kind domain.TableKind, id, rng string, headerRow int) (*domain.Table, error) {
	f.got.id, f.got.rng, f.got.headerRow = id, rng, headerRow
	if f.err != nil {
		return nil, f.err
	}
	t := f.table.Clone()
	t.Kind = kind
	return t, nil
}

type fixture struct {
	svc      *DashboardService
	store    *session.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, sheets SheetImporter) *fixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	store := session.NewMemoryStore(session.MemoryOptions{TTL: time.Hour, JanitorInterval: time.Hour}, logger)
	t.Cleanup(func() { store.Close() })

	notifier := &recordingNotifier{}
	svc := NewDashboardService(DashboardDeps{
		Pipeline:  dataprocessing.NewPipeline(dataprocessing.NewFileLoader(logger), nil, logger),
		Store:     store,
		Notifier:  notifier,
		Sheets:    sheets,
		Validator: validation.NewFileValidator(logger, config.AllowedUploadExtensions, 1<<20),
		Logger:    logger,
	}, DashboardOptions{
		Load:    dataprocessing.DefaultLoadOptions(),
		MaxTopN: 5,
	})
	return &fixture{svc: svc, store: store, notifier: notifier}
}

func (f *fixture) session(t *testing.T) string {
	t.Helper()
	info, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)
	return info.SessionID
}

func (f *fixture) upload(t *testing.T, id string, kind domain.TableKind, name, data string) *UploadResult {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), UploadRequest{
		SessionID: id,
		Kind:      string(kind),
		Filename:  name,
		Data:      []byte(data),
	})
	require.NoError(t, err)
	return res
}

func requireAPIError(t *testing.T, err error, code string) *apierrors.APIError {
	t.Helper()
	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, code, apiErr.ErrorCode)
	return apiErr
}

func TestCreateSessionStartsWithPlaceholders(t *testing.T) {
	f := newFixture(t, nil)

	info, err := f.svc.CreateSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, info.SessionID)
	require.Len(t, info.Summary.Cards, 3)
	for _, c := range info.Summary.Cards {
		assert.Equal(t, domain.NoDataLabel, c.Value)
		assert.False(t, c.Available)
	}
}

func TestUploadHousehold(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)

	res := f.upload(t, id, domain.KindHousehold, "rt.csv", testutil.HouseholdCSV)

	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, domain.KindHousehold, res.Kind)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, dataprocessing.Fingerprint([]byte(testutil.HouseholdCSV)), res.Digest)
	assert.Equal(t, map[string]int{"Pendapatan per Bulan (Rp)": 1}, res.Report.Coerced)

	card, ok := res.Summary.Card(dataprocessing.CardTotalHouseholds).Get()
	require.True(t, ok)
	assert.Equal(t, "3", card.Value)

	require.Len(t, f.notifier.loaded, 1)
	assert.Equal(t, ws.TableLoaded{Kind: domain.KindHousehold, Source: "rt.csv", Rows: 3, Warnings: len(res.Warnings)}, f.notifier.loaded[0])
	require.Len(t, f.notifier.summaries, 1)
	assert.Equal(t, id, f.notifier.summaries[0].SessionID)
}

func TestUploadErrors(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, UploadRequest{SessionID: id, Kind: "desa", Filename: "x.csv", Data: []byte("a\n1\n")})
	requireAPIError(t, err, "UNKNOWN_TABLE_KIND")

	_, err = f.svc.Upload(ctx, UploadRequest{SessionID: "missing", Kind: string(domain.KindHousehold), Filename: "x.csv", Data: []byte("a\n1\n")})
	requireAPIError(t, err, "SESSION_NOT_FOUND")

	_, err = f.svc.Upload(ctx, UploadRequest{SessionID: id, Kind: string(domain.KindHousehold), Filename: "x.pdf", Data: []byte("%PDF")})
	requireAPIError(t, err, "INVALID_UPLOAD")

	_, err = f.svc.Upload(ctx, UploadRequest{SessionID: id, Kind: string(domain.KindHousehold), Filename: "x.xlsx", Data: []byte("not a zip")})
	var loadErr *dataprocessing.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, dataprocessing.LoadMalformed, loadErr.Kind)
	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierrors.ErrTypeParsing, appErr.Type)
	assert.Equal(t, string(domain.KindHousehold), appErr.Context["kind"])
	assert.Equal(t, "x.xlsx", appErr.Context["source"])

	_, err = f.svc.Table(ctx, id, string(domain.KindHousehold), domain.FilterSelection{})
	requireAPIError(t, err, "TABLE_NOT_LOADED")
	assert.Empty(t, f.notifier.loaded, "failed uploads publish nothing")
}

func TestUploadHeaderRowOverride(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	headerRow := 1

	res, err := f.svc.Upload(context.Background(), UploadRequest{
		SessionID: id,
		Kind:      string(domain.KindHamletSufficiency),
		Filename:  "dusun.csv",
		Data:      []byte("Rekap Kemandirian Dusun\n" + testutil.HamletCSV),
		HeaderRow: &headerRow,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rows)
	card, ok := res.Summary.Card(dataprocessing.CardLatestData).Get()
	require.True(t, ok)
	assert.Equal(t, "2023", card.Value)
}

func TestSessionKeepsOneTablePerKind(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)

	f.upload(t, id, domain.KindHouseholdSufficiency, "krt.csv", testutil.SufficiencyCSV)
	f.upload(t, id, domain.KindHousehold, "rt.csv", testutil.HouseholdCSV)

	summary, err := f.svc.Summary(context.Background(), id)
	require.NoError(t, err)

	households, _ := summary.Card(dataprocessing.CardTotalHouseholds).Get()
	assert.Equal(t, "3", households.Value)
	sufficiency, _ := summary.Card(dataprocessing.CardSufficiency).Get()
	assert.Equal(t, "45.83%", sufficiency.Value)
	latest, _ := summary.Card(dataprocessing.CardLatestData).Get()
	assert.Equal(t, domain.NoDataLabel, latest.Value)

	other := f.session(t)
	_, err = f.svc.Table(context.Background(), other, string(domain.KindHousehold), domain.FilterSelection{})
	requireAPIError(t, err, "TABLE_NOT_LOADED")
}

func TestConcurrentUploadsToOneSession(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)

	inputs := map[domain.TableKind]string{
		domain.KindHousehold:            testutil.HouseholdCSV,
		domain.KindHouseholdSufficiency: testutil.SufficiencyCSV,
		domain.KindHamletSufficiency:    testutil.HamletCSV,
	}

	var wg sync.WaitGroup
	for kind, data := range inputs {
		wg.Add(1)
		go func(kind domain.TableKind, data string) {
			defer wg.Done()
			_, err := f.svc.Upload(context.Background(), UploadRequest{
				SessionID: id, Kind: string(kind), Filename: string(kind) + ".csv", Data: []byte(data),
			})
			assert.NoError(t, err)
		}(kind, data)
	}
	wg.Wait()

	summary, err := f.svc.Summary(context.Background(), id)
	require.NoError(t, err)
	for _, c := range summary.Cards {
		assert.True(t, c.Available, c.Key)
	}
}

func TestTableFilter(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	f.upload(t, id, domain.KindHousehold, "rt.csv", testutil.HouseholdCSV)
	ctx := context.Background()

	view, err := f.svc.Table(ctx, id, string(domain.KindHousehold), domain.FilterSelection{Column: "Dusun", Values: []string{"krajan"}})
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalRows)
	assert.Equal(t, 2, view.Matched)
	assert.Len(t, view.Rows, 2)
	assert.Equal(t, "Data Rumah Tangga", view.Title)

	view, err = f.svc.Table(ctx, id, string(domain.KindHousehold), domain.FilterSelection{Column: "Dusun", Values: []string{"Tidak Ada"}})
	require.NoError(t, err)
	assert.Equal(t, 0, view.Matched)

	view, err = f.svc.Table(ctx, id, string(domain.KindHousehold), domain.FilterSelection{Column: "Desa", Values: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Matched)
	var codes []domain.WarningCode
	for _, w := range view.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, domain.WarnFilterColumnMissing)
}

func TestAggregates(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	f.upload(t, id, domain.KindHousehold, "rt.csv", testutil.HouseholdCSV)
	ctx := context.Background()

	_, err := f.svc.Aggregates(ctx, id, string(domain.KindHousehold), AnalyzeRequest{TopN: 6})
	requireAPIError(t, err, "VALIDATION_FAILED")

	view, err := f.svc.Aggregates(ctx, id, string(domain.KindHousehold), AnalyzeRequest{TopN: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Rows)

	byName := make(map[string]domain.AggregateResult)
	for _, r := range view.Results {
		byName[r.Group] = r
	}
	require.Contains(t, byName, "pendapatan_tertinggi")
	require.Len(t, byName["pendapatan_tertinggi"].Ranked, 1)
	assert.Equal(t, "Siti", byName["pendapatan_tertinggi"].Ranked[0].Label)

	jiwa, ok := byName["jumlah_jiwa"].Total.Get()
	require.True(t, ok)
	assert.Equal(t, 12.0, jiwa)
}

func TestOptions(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	f.upload(t, id, domain.KindHousehold, "rt.csv", testutil.HouseholdCSV)

	opts, err := f.svc.Options(context.Background(), id, string(domain.KindHousehold), "Dusun")
	require.NoError(t, err)
	assert.Equal(t, []string{"Krajan", "Sumber"}, opts.Values)

	_, err = f.svc.Options(context.Background(), id, string(domain.KindHousehold), "Desa")
	requireAPIError(t, err, "COLUMN_NOT_FOUND")
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	f.upload(t, id, domain.KindHousehold, "rt.csv", testutil.HouseholdCSV)

	file, err := f.svc.Export(context.Background(), id, string(domain.KindHousehold), exporter.FormatCSV,
		AnalyzeRequest{Filter: domain.FilterSelection{Column: "Dusun", Values: []string{"Sumber"}}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.Filename, "rumah-tangga-"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Equal(t, exporter.FormatCSV.ContentType(), file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Nama Kepala Keluarga,Dusun"))
	assert.True(t, strings.HasPrefix(lines[1], "Siti,Sumber"))
}

func TestImportSheet(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.session(t)
		_, err := f.svc.ImportSheet(context.Background(), SheetImportRequest{
			SessionID: id, Kind: string(domain.KindHamletSufficiency), SpreadsheetID: "abc", Range: "A1:E10",
		})
		requireAPIError(t, err, "SHEETS_DISABLED")
	})

	t.Run("imported", func(t *testing.T) {
		table, err := dataprocessing.BuildTable("abc!Dusun", domain.KindHamletSufficiency, [][]string{
			{"Dusun", "Tahun", "Kemandirian (%)"},
			{"Krajan", "2021", "40"},
			{"Sumber", "2024", "65"},
		}, 0)
		require.NoError(t, err)

		sheets := &fakeSheets{table: table}
		f := newFixture(t, sheets)
		id := f.session(t)

		res, err := f.svc.ImportSheet(context.Background(), SheetImportRequest{
			SessionID: id, Kind: string(domain.KindHamletSufficiency), SpreadsheetID: "abc", Range: "Dusun",
		})
		require.NoError(t, err)

		assert.Equal(t, "abc", sheets.got.id)
		assert.Equal(t, "Dusun", sheets.got.rng)
		assert.Equal(t, 0, sheets.got.headerRow)
		assert.Equal(t, "abc!Dusun", res.Source)
		latest, _ := res.Summary.Card(dataprocessing.CardLatestData).Get()
		assert.Equal(t, "2024", latest.Value)
	})

	t.Run("read failure", func(t *testing.T) {
		sheets := &fakeSheets{err: dataprocessing.NewLoadError(dataprocessing.LoadMalformed, "abc!A1", errors.New("403"))}
		f := newFixture(t, sheets)
		id := f.session(t)

		_, err := f.svc.ImportSheet(context.Background(), SheetImportRequest{
			SessionID: id, Kind: string(domain.KindHousehold), SpreadsheetID: "abc", Range: "A1",
		})
		var loadErr *dataprocessing.LoadError
		require.ErrorAs(t, err, &loadErr)
		var appErr *apierrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "abc!A1", appErr.Context["source"])
	})
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, nil)
	id := f.session(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteSession(ctx, id))
	assert.Equal(t, []string{id}, f.notifier.closed)

	_, err := f.svc.Summary(ctx, id)
	apiErr := requireAPIError(t, err, "SESSION_NOT_FOUND")
	assert.Equal(t, map[string]string{"session_id": id}, apiErr.Details)

	err = f.svc.DeleteSession(ctx, id)
	requireAPIError(t, err, "SESSION_NOT_FOUND")
}
