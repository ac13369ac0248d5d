// Package exporter writes normalized dashboard tables back out.
//
// Three formats are supported:
//
// CSV: the table as comma separated text, optionally prefixed with a UTF-8
// BOM so Excel picks the right encoding.
//
// XLSX: a workbook with a "Data" sheet holding the table and a "Ringkasan"
// sheet listing every aggregation result.
//
// GeoJSON: a FeatureCollection of the points produced by the coordinate
// groups, for loading into a map.
//
// Example usage:
//
//	exp := exporter.New(exporter.Options{BOM: true}, logger)
//	err := exp.Export(ctx, w, exporter.FormatXLSX, exporter.Dataset{
//		Kind:    domain.KindHousehold,
//		Table:   filtered,
//		Results: results,
//	})
package exporter
