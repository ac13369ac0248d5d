package testutil

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// HouseholdCSV is a small semicolon separated household table with one
// unparseable income cell and one empty coordinate.
const HouseholdCSV = "Nama Kepala Keluarga;Dusun;Jumlah Anggota Keluarga;Pekerjaan Utama;Pendapatan per Bulan (Rp);Sapi (ekor);Pengelolaan Sampah Organik;Koordinat\n" +
	"Budi;Krajan;4;Petani;Rp 1.500.000;2;bakar;112.75,-7.25\n" +
	"Siti;Sumber;3;Pedagang;2.000.000;;kompos;112.80,-7.30\n" +
	"Joko;Krajan;5;petani;abc;1;;\n"

// SufficiencyCSV is a household self-sufficiency table.
const SufficiencyCSV = "Nama Kepala Keluarga,Dusun,Kemandirian (%),Kategori Kemandirian,Padi (kg),Jagung (kg)\n" +
	"Budi,Krajan,45%,Sedang,120,30\n" +
	"Siti,Sumber,80%,Tinggi,200,\n" +
	"Joko,Krajan,12.5,Rendah,40,10\n"

// HamletCSV is a per-hamlet self-sufficiency table.
const HamletCSV = "Dusun,Tahun,Kemandirian (%),Jumlah Rumah Tangga,Koordinat\n" +
	"Krajan,2022,40,120,\"112.75,-7.25\"\n" +
	"Sumber,2023,65,80,\"112.80,-7.30\"\n"

// CSVRows builds comma separated text from rows.
func CSVRows(rows ...[]string) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// Workbook returns an in-memory xlsx file whose first sheet holds rows.
func Workbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" && sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
	} else {
		sheet = "Sheet1"
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}
