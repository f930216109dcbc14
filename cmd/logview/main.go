// LogView - provenance-tracked incremental filtering of process logs.
// Runs YAML analysis scripts against an event log and reports result sets,
// characterizations and comparisons.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logflow/logview/pkg/config"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	configFile      string
	logFile         string
	verbose         bool
	quiet           bool
	caseIDColumn    string
	activityColumn  string
	timestampColumn string
	resourceColumn  string
	timestampFormat string
	delimiter       string
	sheet           string
	outputDir       string
	exportFormat    string
	samples         int
	seed            int64
	otlpEndpoint    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err, verbose)
		os.Exit(1)
	}
}

// printError prints err and, when verbose, the stack it was created at.
func printError(w io.Writer, err error, verbose bool) {
	fmt.Fprintln(w, err)
	var lvErr *lverrors.LogViewError
	if verbose && errors.As(err, &lvErr) && len(lvErr.StackTrace) > 0 {
		fmt.Fprint(w, lvErr.FormatStack())
	}
}

var rootCmd = &cobra.Command{
	Use:   "logview",
	Short: "LogView - provenance-tracked filtering of process logs",
	Long: `LogView evaluates queries over a process log, records the provenance of
every derived result set and compares result sets with each other.

Analyses are written as YAML scripts. See 'logview run --help'.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run an analysis script and print its results",
	Long: `Run an analysis script against an event log.

The log is taken from --log, or from the script's "log" key.

Examples:
  logview run analysis.yaml --log events.csv
  logview run analysis.yaml --log events.xlsx --sheet Events
  logview run analysis.yaml --log events.parquet --case-id case_id --activity activity`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var summaryCmd = &cobra.Command{
	Use:   "summary [script]",
	Short: "Run an analysis script and print the provenance summary only",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export [script]",
	Short: "Run an analysis script and write result sets as Arrow IPC files",
	Long: `Run an analysis script and write result sets as Arrow IPC streams.

Exports the script's "export" list, or every registered result set when the
list is empty.

Examples:
  logview export analysis.yaml --log events.csv -o out/`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to ~/.logview/config.yaml",
	RunE:  runConfigInit,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (overrides the search path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	for _, cmd := range []*cobra.Command{runCmd, summaryCmd, exportCmd} {
		cmd.Flags().StringVarP(&logFile, "log", "l", "", "Event log (csv, tsv, json, jsonl, parquet, xlsx)")
		cmd.Flags().StringVar(&caseIDColumn, "case-id", "", "Case ID column name")
		cmd.Flags().StringVar(&activityColumn, "activity", "", "Activity column name")
		cmd.Flags().StringVar(&timestampColumn, "timestamp", "", "Timestamp column name")
		cmd.Flags().StringVar(&resourceColumn, "resource", "", "Resource column name")
		cmd.Flags().StringVar(&timestampFormat, "timestamp-format", "", "Timestamp format (Go time layout), auto-detected if empty")
		cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV field delimiter, sniffed if empty")
		cmd.Flags().StringVar(&sheet, "sheet", "", "XLSX sheet name, first sheet if empty")
		cmd.Flags().IntVar(&samples, "samples", 0, "Cases drawn by the examples characterizer")
		cmd.Flags().Int64Var(&seed, "seed", 0, "Seed of the examples characterizer")
		cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for traces")
	}
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: arrow or parquet")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// newManager loads the --config file, or the default search path.
func newManager() (*config.Manager, error) {
	m := config.NewManager()
	var err error
	if configFile != "" {
		err = m.LoadFrom(configFile)
	} else {
		err = m.Load()
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// loadConfig loads the hierarchical config and applies flag overrides.
func loadConfig() (*config.Config, error) {
	m, err := newManager()
	if err != nil {
		return nil, err
	}
	cfg := m.Get()

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Columns.CaseID, caseIDColumn)
	override(&cfg.Columns.Activity, activityColumn)
	override(&cfg.Columns.Timestamp, timestampColumn)
	override(&cfg.Columns.Resource, resourceColumn)
	override(&cfg.Loader.TimestampFormat, timestampFormat)
	override(&cfg.Loader.Delimiter, delimiter)
	override(&cfg.Loader.Sheet, sheet)
	override(&cfg.Export.Dir, outputDir)
	override(&cfg.Export.Format, exportFormat)
	override(&cfg.Telemetry.Endpoint, otlpEndpoint)
	if samples > 0 {
		cfg.Characterize.Samples = samples
	}
	if seed != 0 {
		cfg.Characterize.Seed = seed
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	for _, p := range m.GetPaths() {
		fmt.Fprintln(cmd.OutOrStdout(), "# loaded "+p)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	path, err := m.Save()
	if err != nil {
		return err
	}
	tui.Success(cmd.OutOrStdout(), "wrote "+path)
	return nil
}
