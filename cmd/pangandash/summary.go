package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pangandash/internal/app"
	"pangandash/internal/config"
	"pangandash/internal/dataprocessing"
	"pangandash/internal/files"
	"pangandash/internal/infrastructure"
	"pangandash/internal/validation"
	"pangandash/pkg/contracts/domain"
)

// summaryReport is printed by the summary command. Failed lists the kinds
// whose file could not be loaded, with the reason.
type summaryReport struct {
	Summary domain.Summary              `json:"summary"`
	Loaded  map[domain.TableKind]string `json:"loaded"`
	Failed  map[domain.TableKind]string `json:"failed,omitempty"`
}

func newSummaryCmd(root *rootOptions) *cobra.Command {
	paths := make(map[domain.TableKind]*string, 3)
	var (
		dir    string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard metric cards for up to three tables",
		Example: `  pangandash summary --rumah-tangga rt.xlsx --kemandirian-rt kemandirian.csv
  pangandash summary --kemandirian-dusun dusun.csv
  pangandash summary --dir data/ --kemandirian-rt override.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := make(map[domain.TableKind]string)
			if dir != "" {
				found, err := files.NewDiscovery(config.AllowedUploadExtensions).FindTables(dir)
				if err != nil {
					return err
				}
				for kind, f := range found {
					selected[kind] = f.Path
				}
			}
			for kind, p := range paths {
				if *p != "" {
					selected[kind] = *p
				}
			}
			return runSummary(cmd, root, selected, pretty)
		},
	}

	for _, kind := range domain.AllTableKinds() {
		paths[kind] = cmd.Flags().String(string(kind), "", kind.Title()+" file")
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to search for files named after each table kind")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "indent JSON output")
	return cmd
}

func runSummary(cmd *cobra.Command, root *rootOptions, paths map[domain.TableKind]string, pretty bool) error {
	if len(paths) == 0 {
		return errors.New("no input files; pass --dir or at least one of --" + strings.ReplaceAll(kindList(), ", ", ", --"))
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
	validator := validation.NewFileValidator(logger, config.AllowedUploadExtensions, cfg.Upload.MaxSizeBytes)

	type outcome struct {
		table *domain.LoadedTable
		err   error
	}
	kinds := make([]domain.TableKind, 0, len(paths))
	for kind := range paths {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	outcomes := make([]outcome, len(kinds))

	// Each goroutine records its own failure so one bad file never cancels
	// the others.
	ctx := cmd.Context()
	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			src, err := readSource(validator, paths[kind])
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].table, outcomes[i].err = pipeline.Ingest(ctx, kind, src, loadOpts)
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now().UTC()
	dc := domain.NewDashboardContext("cli", now)
	report := summaryReport{
		Loaded: make(map[domain.TableKind]string),
		Failed: make(map[domain.TableKind]string),
	}
	for i, kind := range kinds {
		if outcomes[i].err != nil {
			report.Failed[kind] = outcomes[i].err.Error()
			infrastructure.WithError(logger, outcomes[i].err).WarnContext(ctx, "Table not loaded",
				slog.String("kind", string(kind)),
				slog.String("file", paths[kind]))
			continue
		}
		if err := dc.SetTable(kind, outcomes[i].table, now); err != nil {
			return err
		}
		report.Loaded[kind] = outcomes[i].table.Source
	}
	report.Summary = dataprocessing.Summarize(dc)

	if err := writeJSON(cmd.OutOrStdout(), report, pretty); err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d tables failed to load", len(report.Failed), len(kinds))
	}
	return nil
}
