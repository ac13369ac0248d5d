// Package shared holds helpers used by more than one package.
//
// testutil provides a capturing slog handler and upload fixtures (CSV text
// and in-memory workbooks) for package tests.
package shared
