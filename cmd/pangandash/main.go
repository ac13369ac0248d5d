// Command pangandash serves the food self-sufficiency dashboard API and
// analyzes survey tables from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pangandash/internal/config"
	"pangandash/internal/infrastructure"
	"pangandash/pkg/contracts"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "pangandash",
		Short:         "Food self-sufficiency dashboard service",
		Long:          `pangandash loads village household surveys (CSV or Excel), normalizes them and serves the dashboard aggregates over HTTP.`,
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate(contracts.GetFullVersionString() + "\n")
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file (default: $"+config.EnvConfigFile+" or ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(opts),
		newAnalyzeCmd(opts),
		newSummaryCmd(opts),
	)
	return root
}

// loadConfig reads the configuration selected by the global flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.configFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	return cfg, nil
}

// cliLogger logs to stderr so command output on stdout stays parseable.
// Offline commands stay quiet below warn unless --log-level asks otherwise.
func (o *rootOptions) cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.logLevel != "" {
		if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
			level = slog.LevelWarn
		}
	}
	return infrastructure.NewLogger(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
}
