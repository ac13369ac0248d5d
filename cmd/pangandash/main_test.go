package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pangandash/internal/dataprocessing"
	"pangandash/internal/exporter"
	"pangandash/internal/shared/testutil"
	"pangandash/pkg/contracts"
	"pangandash/pkg/contracts/domain"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PANGAN_CONFIG_FILE", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	path := writeFixture(t, "rt.csv", testutil.HouseholdCSV)

	stdout, _, err := execute(t, "analyze", "--kind", "rumah-tangga", "--top-n", "1", path)
	require.NoError(t, err)

	var report analyzeReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, domain.KindHousehold, report.Kind)
	assert.Equal(t, "rt.csv", report.Source)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 3, report.Matched)
	assert.Equal(t, map[string]int{"Pendapatan per Bulan (Rp)": 1}, report.Report.Coerced)

	var ranked *domain.AggregateResult
	for i := range report.Results {
		if report.Results[i].Group == "pendapatan_tertinggi" {
			ranked = &report.Results[i]
		}
	}
	require.NotNil(t, ranked)
	require.Len(t, ranked.Ranked, 1)
	assert.Equal(t, "Siti", ranked.Ranked[0].Label)
}

func TestAnalyzeCommandFilterAndExport(t *testing.T) {
	path := writeFixture(t, "rt.csv", testutil.HouseholdCSV)
	out := filepath.Join(t.TempDir(), "exports", "krajan.xlsx")

	stdout, _, err := execute(t, "analyze", "-k", "rumah-tangga",
		"--filter-column", "Dusun", "--filter-value", "Krajan",
		"--out", out, path)
	require.NoError(t, err)

	var report analyzeReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, out, report.Export)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(exporter.DataSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header plus two Krajan rows")
}

func TestAnalyzeCommandErrors(t *testing.T) {
	path := writeFixture(t, "rt.csv", testutil.HouseholdCSV)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing kind", args: []string{"analyze", path}, wantErr: `required flag(s) "kind" not set`},
		{name: "unknown kind", args: []string{"analyze", "--kind", "panen", path}, wantErr: "unknown table kind"},
		{name: "value without column", args: []string{"analyze", "--kind", "rumah-tangga", "--filter-value", "Krajan", path}, wantErr: "--filter-value requires --filter-column"},
		{name: "missing file", args: []string{"analyze", "--kind", "rumah-tangga", filepath.Join(t.TempDir(), "absent.csv")}, wantErr: "does not exist"},
		{name: "unsupported input", args: []string{"analyze", "--kind", "rumah-tangga", writeFixture(t, "rt.pdf", "x")}, wantErr: "unsupported file extension"},
		{name: "bad export extension", args: []string{"analyze", "--kind", "rumah-tangga", "--out", filepath.Join(t.TempDir(), "out.pdf"), path}, wantErr: "pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSummaryCommand(t *testing.T) {
	rt := writeFixture(t, "rt.csv", testutil.HouseholdCSV)
	dusun := writeFixture(t, "dusun.csv", testutil.HamletCSV)

	stdout, _, err := execute(t, "summary", "--rumah-tangga", rt, "--kemandirian-dusun", dusun)
	require.NoError(t, err)

	var report summaryReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Empty(t, report.Failed)
	assert.Equal(t, "rt.csv", report.Loaded[domain.KindHousehold])

	households, ok := report.Summary.Card(dataprocessing.CardTotalHouseholds).Get()
	require.True(t, ok)
	assert.Equal(t, "3", households.Value)

	latest, ok := report.Summary.Card(dataprocessing.CardLatestData).Get()
	require.True(t, ok)
	assert.Equal(t, "2023", latest.Value)

	sufficiency, ok := report.Summary.Card(dataprocessing.CardSufficiency).Get()
	require.True(t, ok)
	assert.Equal(t, domain.NoDataLabel, sufficiency.Value)
}

func TestSummaryCommandKeepsGoodTables(t *testing.T) {
	rt := writeFixture(t, "rt.csv", testutil.HouseholdCSV)
	broken := writeFixture(t, "kemandirian.xlsx", "not a workbook")

	stdout, _, err := execute(t, "summary", "--rumah-tangga", rt, "--kemandirian-rt", broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tables failed")

	var report summaryReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Contains(t, report.Failed, domain.KindHouseholdSufficiency)
	households, ok := report.Summary.Card(dataprocessing.CardTotalHouseholds).Get()
	require.True(t, ok)
	assert.Equal(t, "3", households.Value)
}

func TestSummaryCommandRequiresInput(t *testing.T) {
	_, _, err := execute(t, "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files")
}

func TestSummaryCommandDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rumah-tangga_2024.csv"), []byte(testutil.HouseholdCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kemandirian-dusun.csv"), []byte("not used"), 0o644))
	override := writeFixture(t, "dusun.csv", testutil.HamletCSV)

	stdout, _, err := execute(t, "summary", "--dir", dir, "--kemandirian-dusun", override)
	require.NoError(t, err)

	var report summaryReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, map[domain.TableKind]string{
		domain.KindHousehold:         "rumah-tangga_2024.csv",
		domain.KindHamletSufficiency: "dusun.csv",
	}, report.Loaded, "explicit flags override discovered files")
}

func TestVersionFlag(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, contracts.Version)
	assert.Contains(t, stdout, "commit:")
}
