package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pangandash/pkg/contracts/domain"
)

// Sheet names of an exported workbook.
const (
	DataSheet    = "Data"
	SummarySheet = "Ringkasan"
)

var summaryHeader = []interface{}{"Kelompok", "Judul", "Keterangan", "Nilai", "Jumlah Data"}

// WriteXLSX writes t to the Data sheet and results to the Ringkasan sheet.
func WriteXLSX(w io.Writer, t *domain.Table, results []domain.AggregateResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return fmt.Errorf("rename data sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := writeRow(f, DataSheet, 1, header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = cellValue(v)
		}
		if err := writeRow(f, DataSheet, i+2, cells); err != nil {
			return err
		}
	}
	if len(t.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err := f.SetCellStyle(DataSheet, "A1", last, bold); err != nil {
			return fmt.Errorf("style data header: %w", err)
		}
	}

	if err := writeRow(f, SummarySheet, 1, summaryHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	for i, row := range SummaryRows(results) {
		if err := writeRow(f, SummarySheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "C", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cellValue keeps numbers numeric so spreadsheet formulas work on the export.
func cellValue(v domain.Value) interface{} {
	switch v.Kind {
	case domain.ValueNumber:
		return v.Number
	case domain.ValueText:
		return v.Text
	default:
		return nil
	}
}

// SummaryRows flattens aggregation results into (group, title, label, value,
// count) rows. Empty groups produce a single row carrying their warning.
func SummaryRows(results []domain.AggregateResult) [][]interface{} {
	rows := make([][]interface{}, 0)
	add := func(r domain.AggregateResult, label string, value interface{}, count interface{}) {
		rows = append(rows, []interface{}{r.Group, r.Title, label, value, count})
	}

	for _, r := range results {
		if r.Empty {
			msg := "Tidak ada data"
			if len(r.Warnings) > 0 {
				msg = r.Warnings[0].Message
			}
			add(r, msg, nil, 0)
			continue
		}

		switch r.Op {
		case domain.OpSum, domain.OpMean, domain.OpMax:
			for _, v := range r.Values {
				add(r, v.Column, optionalNumber(v.Value), v.Count)
			}
			if total, ok := r.Total.Get(); ok && r.Op == domain.OpSum {
				add(r, "Total", total, nil)
			}
		case domain.OpTopN:
			for _, rr := range r.Ranked {
				add(r, rr.Label, rr.Value, nil)
			}
		case domain.OpCountBy:
			for _, c := range r.Counts {
				add(r, c.Category, c.Count, nil)
			}
		case domain.OpSumBy:
			for _, g := range r.Groups {
				add(r, g.Category, g.Total, nil)
			}
		case domain.OpCoordinates:
			add(r, "Titik", len(r.Points), nil)
			if r.Dropped > 0 {
				add(r, "Koordinat tidak valid", r.Dropped, nil)
			}
		}
	}
	return rows
}

func optionalNumber(o domain.Option[float64]) interface{} {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}
