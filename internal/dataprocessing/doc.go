// Package dataprocessing turns uploaded household and food self-sufficiency
// files into normalized tables and aggregate results for the dashboard.
//
// # Architecture
//
// The pipeline has four steps, each a plain function over *domain.Table:
//
// 1. Loader: reads CSV (with a legacy-encoding fallback) or spreadsheet bytes
// 2. Normalizer: coerces configured columns to numbers or categories
// 3. Selector: keeps the rows matching a categorical filter
// 4. Aggregator: evaluates the static aggregation groups of the catalog
//
// The catalog (catalog.yaml, embedded) lists the recognised columns and
// aggregation groups of every table kind. Column absence is never an error:
// affected sections are skipped and a domain.Warning is returned instead.
//
// # Usage
//
//	p := dataprocessing.NewPipeline(dataprocessing.NewFileLoader(logger), nil, logger)
//	lt, err := p.Ingest(ctx, domain.KindHouseholdSufficiency, src, dataprocessing.DefaultLoadOptions())
//	if err != nil {
//	    return err // *LoadError
//	}
//	_, results, warnings, err := p.Analyze(ctx, lt.Table.Kind, lt.Table, domain.FilterSelection{})
//
// # Data Flow
//
//	Upload → Loader → Table → Normalize → Select → AggregateAll → JSON
//
// # Caching
//
// CachedLoader memoizes parsed tables by BLAKE2b digest of the file bytes.
// It is an optimization only; every caller receives its own copy.
package dataprocessing
