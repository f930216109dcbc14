package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/logview/pkg/config"
	"github.com/logflow/logview/pkg/evaluator"
	"github.com/logflow/logview/pkg/export"
	"github.com/logflow/logview/pkg/loader"
	"github.com/logflow/logview/pkg/logview"
	"github.com/logflow/logview/pkg/registry"
	"github.com/logflow/logview/pkg/script"
	"github.com/logflow/logview/pkg/telemetry"
	"github.com/logflow/logview/pkg/tui"
)

// session is one executed analysis.
type session struct {
	cfg      *config.Config
	lv       *logview.LogView
	script   *script.Script
	outcome  *script.Outcome
	shutdown func(context.Context) error
}

func (s *session) close() {
	if s.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Telemetry.ExportTimeout)
	defer cancel()
	if err := s.shutdown(ctx); err != nil && s.cfg.Verbose {
		fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
	}
}

// runScript loads the config, the script and its log, then executes it.
func runScript(ctx context.Context, out io.Writer, scriptPath string, showProgress bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := script.Load(scriptPath)
	if err != nil {
		return nil, err
	}

	path := logFile
	if path == "" {
		path = s.Log
	}
	if path == "" {
		return nil, fmt.Errorf("no event log: pass --log or set \"log\" in %s", scriptPath)
	}

	opts := loader.Options{
		Columns: loader.Columns{
			CaseID:    cfg.Columns.CaseID,
			Activity:  cfg.Columns.Activity,
			Timestamp: cfg.Columns.Timestamp,
			Resource:  cfg.Columns.Resource,
		},
		TimestampFormat: cfg.Loader.TimestampFormat,
		Delimiter:       cfg.Loader.Delimiter,
		Sheet:           cfg.Loader.Sheet,
		MemoryLimit:     cfg.Loader.MemoryLimit,
		Threads:         cfg.Loader.Threads,
	}
	start := time.Now()
	initial, err := loader.Load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		tui.Info(out, "log", path)
		tui.Info(out, "events", fmt.Sprint(initial.Len()))
		tui.Info(out, "cases", fmt.Sprint(initial.CaseCount()))
		tui.Info(out, "loaded in", time.Since(start).Round(time.Millisecond).String())
	}

	otlp := telemetry.DefaultOTLPConfig(cfg.Telemetry.ServiceName)
	otlp.Endpoint = cfg.Telemetry.Endpoint
	otlp.Environment = cfg.Telemetry.Environment
	otlp.SamplingRatio = cfg.Telemetry.SamplingRatio
	otlp.ExportTimeout = cfg.Telemetry.ExportTimeout
	otlp.ServiceVersion = version
	tracer, shutdown, err := telemetry.Setup(ctx, otlp)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "[logview] ", log.LstdFlags)
	lv, err := logview.New(evaluator.New(), registry.NewMemory(), initial,
		logview.WithLogger(logger),
		logview.WithTracer(tracer),
	)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}
	if err := script.AttachDefaults(lv, s, script.Defaults{
		Samples: cfg.Characterize.Samples,
		Seed:    cfg.Characterize.Seed,
		Logger:  logger,
	}); err != nil {
		shutdown(ctx)
		return nil, err
	}

	var progress script.Progress
	if showProgress && s.Steps() > 0 {
		bar := tui.ShowProgress(os.Stderr, s.Steps(), s.Name)
		progress = func(desc string) {
			bar.Describe(desc)
			bar.Add(1)
		}
		defer bar.Finish()
	}

	outcome, err := script.Run(ctx, lv, s, progress)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}
	return &session{cfg: cfg, lv: lv, script: s, outcome: outcome, shutdown: shutdown}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	tui.Header(out)
	sess, err := runScript(ctx, out, args[0], !quiet)
	if err != nil {
		return err
	}
	defer sess.close()

	tui.Outcome(out, sess.outcome)
	tui.Summary(out, sess.lv.Summary())

	if len(sess.script.Export) > 0 {
		return exportResults(ctx, out, sess, sess.cfg.Export.Dir)
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := runScript(ctx, cmd.OutOrStdout(), args[0], false)
	if err != nil {
		return err
	}
	defer sess.close()

	tui.Summary(cmd.OutOrStdout(), sess.lv.Summary())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	sess, err := runScript(ctx, out, args[0], false)
	if err != nil {
		return err
	}
	defer sess.close()

	if len(sess.script.Export) == 0 {
		sess.script.Export = []string{"*"}
	}
	return exportResults(ctx, out, sess, sess.cfg.Export.Dir)
}

func exportResults(ctx context.Context, out io.Writer, sess *session, dir string) error {
	targets, err := script.ExportTargets(sess.lv, sess.script)
	if err != nil {
		return err
	}

	jobs := make([]export.Job, len(targets))
	for i, t := range targets {
		meta := map[string]string{}
		if ev, err := sess.lv.Registry().Evaluation(t.Data.Handle()); err == nil {
			meta[export.MetaQuery] = ev.Query.String()
			meta[export.MetaSource] = sess.lv.NameOf(ev.Source)
		}
		jobs[i] = export.Job{Name: t.Name, Data: t.Data, Metadata: meta}
	}

	start := time.Now()
	exp := export.NewExporter(dir, sess.cfg.Export.Concurrency)
	switch sess.cfg.Export.Format {
	case "", export.FormatArrow:
	case export.FormatParquet:
		pw, err := export.NewParquetWriter(sess.cfg.Export.Compression)
		if err != nil {
			return err
		}
		defer pw.Close()
		pw.CaseSummary = sess.cfg.Export.CaseSummary
		exp.Parquet = pw
	default:
		return fmt.Errorf("unknown export format %q", sess.cfg.Export.Format)
	}
	results, err := exp.Export(ctx, jobs)
	if err != nil {
		return err
	}
	tui.Exports(out, results, time.Since(start))
	return nil
}
