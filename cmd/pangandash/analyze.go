package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pangandash/internal/app"
	"pangandash/internal/config"
	"pangandash/internal/dataprocessing"
	"pangandash/internal/exporter"
	"pangandash/internal/validation"
	"pangandash/pkg/contracts/domain"
)

type analyzeOptions struct {
	kind         string
	headerRow    int
	sheet        string
	filterColumn string
	filterValues []string
	topN         int
	out          string
	pretty       bool
}

// analyzeReport is printed by the analyze command.
type analyzeReport struct {
	Kind     domain.TableKind           `json:"kind"`
	Source   string                     `json:"source"`
	Digest   string                     `json:"digest"`
	Rows     int                        `json:"rows"`
	Matched  int                        `json:"matched_rows"`
	Filter   domain.FilterSelection     `json:"filter"`
	Report   domain.NormalizationReport `json:"report"`
	Warnings []domain.Warning           `json:"warnings"`
	Results  []domain.AggregateResult   `json:"results"`
	Export   string                     `json:"export,omitempty"`
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze --kind KIND FILE",
		Short: "Normalize one table and print its aggregates as JSON",
		Example: `  pangandash analyze --kind rumah-tangga data/rumah_tangga.xlsx
  pangandash analyze --kind kemandirian-rt --filter-column Dusun --filter-value Krajan survey.csv
  pangandash analyze --kind kemandirian-dusun --out ringkasan.xlsx dusun.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.kind, "kind", "k", "", "table kind: "+kindList())
	flags.IntVar(&opts.headerRow, "header-row", -1, "0-based header row (default from config)")
	flags.StringVar(&opts.sheet, "sheet", "", "worksheet name for Excel files (default: first sheet)")
	flags.StringVar(&opts.filterColumn, "filter-column", "", "restrict rows to those whose column matches --filter-value")
	flags.StringArrayVar(&opts.filterValues, "filter-value", nil, "accepted value for --filter-column (repeatable)")
	flags.IntVar(&opts.topN, "top-n", 0, "override the size of ranked groups")
	flags.StringVarP(&opts.out, "out", "o", "", "also export to this file (.csv, .xlsx or .geojson)")
	flags.BoolVar(&opts.pretty, "pretty", true, "indent JSON output")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	kind, err := domain.ParseTableKind(opts.kind)
	if err != nil {
		return fmt.Errorf("%w (expected one of %s)", err, kindList())
	}
	sel, err := filterSelection(opts.filterColumn, opts.filterValues)
	if err != nil {
		return err
	}
	if opts.topN < 0 {
		return errors.New("--top-n must not be negative")
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := root.cliLogger(cmd)

	pipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	loadOpts := app.LoadOptions(cfg.Upload)
	if opts.headerRow >= 0 {
		loadOpts.HeaderRow = opts.headerRow
	}
	loadOpts.Sheet = opts.sheet

	validator := validation.NewFileValidator(logger, config.AllowedUploadExtensions, cfg.Upload.MaxSizeBytes)
	src, err := readSource(validator, path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	lt, err := pipeline.Ingest(ctx, kind, src, loadOpts)
	if err != nil {
		return err
	}

	filtered, results, filterWarnings, err := pipeline.AnalyzeTop(ctx, kind, lt.Table, sel, opts.topN)
	if err != nil {
		return err
	}

	report := analyzeReport{
		Kind:     kind,
		Source:   lt.Source,
		Digest:   lt.Digest,
		Rows:     lt.Table.Len(),
		Matched:  filtered.Len(),
		Filter:   sel,
		Report:   lt.Report,
		Warnings: append(append([]domain.Warning{}, lt.Warnings...), filterWarnings...),
		Results:  results,
	}

	if opts.out != "" {
		if err := validator.ValidateOutputDirectory(filepath.Dir(opts.out)); err != nil {
			return err
		}
		exp := exporter.New(exporter.Options{BOM: cfg.Upload.CSVBOM}, logger)
		if err := exp.ExportFile(ctx, opts.out, exporter.Dataset{Kind: kind, Table: filtered, Results: results}); err != nil {
			return err
		}
		report.Export = opts.out
	}

	return writeJSON(cmd.OutOrStdout(), report, opts.pretty)
}

func filterSelection(column string, values []string) (domain.FilterSelection, error) {
	column = strings.TrimSpace(column)
	switch {
	case column == "" && len(values) == 0:
		return domain.FilterSelection{}, nil
	case column == "":
		return domain.FilterSelection{}, errors.New("--filter-value requires --filter-column")
	case len(values) == 0:
		return domain.FilterSelection{}, errors.New("--filter-column requires at least one --filter-value")
	}
	return domain.FilterSelection{Column: column, Values: values}, nil
}

// readSource applies the upload rules to a local file before reading it.
func readSource(validator *validation.FileValidator, path string) (dataprocessing.Source, error) {
	if err := validator.ValidateFile(path); err != nil {
		return dataprocessing.Source{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return dataprocessing.Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return dataprocessing.Source{Filename: filepath.Base(path), Data: data}, nil
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func kindList() string {
	kinds := domain.AllTableKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
