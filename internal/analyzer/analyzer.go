// Package analyzer runs one pass of the latency report pipeline: pick the
// log, scan it, rank the paths and write the report.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/loglatency/internal/ingest"
	"github.com/tinytelemetry/loglatency/internal/logsource"
	"github.com/tinytelemetry/loglatency/internal/metrics"
	"github.com/tinytelemetry/loglatency/internal/model"
	"github.com/tinytelemetry/loglatency/internal/report"
	"github.com/tinytelemetry/loglatency/internal/stats"
)

// Outcome tells how a run ended.
type Outcome int

const (
	// OutcomeWritten means at least one report was written.
	OutcomeWritten Outcome = iota
	// OutcomeReportExists means every candidate log already has a report.
	OutcomeReportExists
	// OutcomeNoLog means no dated log was found.
	OutcomeNoLog
	// OutcomeFailed accompanies a non-nil error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeReportExists:
		return "report_exists"
	case OutcomeNoLog:
		return "no_log"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcomes lists the names of all outcomes.
func Outcomes() []string {
	return []string{
		OutcomeWritten.String(),
		OutcomeReportExists.String(),
		OutcomeNoLog.String(),
		OutcomeFailed.String(),
	}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFs sets the filesystem used for logs, templates and reports.
func WithFs(fs afero.Fs) Option {
	return func(a *Analyzer) { a.fs = fs }
}

// WithLogger sets the process logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithRecorder sets the diagnostics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithParallelism bounds how many logs are scanned at once when
// ProcessAll is enabled. Each log is always scanned by one goroutine.
func WithParallelism(n int) Option {
	return func(a *Analyzer) { a.parallelism = n }
}

// Analyzer produces latency reports for the configured log directory.
type Analyzer struct {
	cfg         model.RunConfig
	fs          afero.Fs
	logger      *zap.Logger
	recorder    *metrics.Recorder
	parallelism int
}

// New creates an analyzer for cfg.
func New(cfg model.RunConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:         cfg,
		fs:          afero.NewOsFs(),
		logger:      zap.NewNop(),
		recorder:    metrics.NewRecorder(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.parallelism < 1 {
		a.parallelism = 1
	}
	return a
}

// Recorder returns the diagnostics recorder.
func (a *Analyzer) Recorder() *metrics.Recorder { return a.recorder }

// ReportPath returns where the report for lf is written.
func (a *Analyzer) ReportPath(lf model.LogFile) string {
	return filepath.Join(a.cfg.ReportDir, report.Name(a.cfg.ReportNamePattern, lf.Date))
}

// Run performs one pass. A nil error comes with OutcomeWritten,
// OutcomeReportExists or OutcomeNoLog; any error comes with OutcomeFailed.
// Errors wrap ingest.ErrErrorRateExceeded or *report.WriteError for the two
// fatal conditions.
func (a *Analyzer) Run(ctx context.Context) (Outcome, error) {
	start := time.Now()

	outcome, err := a.run(ctx)
	if err != nil {
		outcome = OutcomeFailed
	}

	a.recorder.ObserveRun(outcome.String(), Outcomes(), time.Since(start), time.Now())
	return outcome, err
}

func (a *Analyzer) run(ctx context.Context) (Outcome, error) {
	candidates, err := a.candidates()
	if errors.Is(err, logsource.ErrLogDirMissing) || errors.Is(err, logsource.ErrNoLogFound) {
		a.logger.Warn("No log to analyze", zap.String("log_dir", a.cfg.LogDir), zap.Error(err))
		return OutcomeNoLog, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	var pending []model.LogFile
	for _, lf := range candidates {
		path := a.ReportPath(lf)
		exists, err := report.Exists(a.fs, path)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("analyzer: stat report %s: %w", path, err)
		}
		if exists {
			a.logger.Info("Report already exists", zap.String("log", lf.Name), zap.String("report", path))
			continue
		}
		pending = append(pending, lf)
	}
	if len(pending) == 0 {
		return OutcomeReportExists, nil
	}

	tmpl, err := report.LoadTemplate(a.fs, a.cfg.TemplatePath)
	if err != nil {
		a.logger.Error("Error read report template", zap.Error(err))
		return OutcomeFailed, err
	}
	renderer := report.NewRenderer(a.fs, tmpl)

	if len(pending) == 1 {
		return OutcomeWritten, a.processLog(ctx, renderer, pending[0])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for _, lf := range pending {
		lf := lf
		g.Go(func() error {
			return a.processLog(gctx, renderer, lf)
		})
	}
	if err := g.Wait(); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeWritten, nil
}

// candidates returns the logs this run may report on: the newest one, or
// all of them when ProcessAll is set.
func (a *Analyzer) candidates() ([]model.LogFile, error) {
	if !a.cfg.ProcessAll {
		lf, err := logsource.FindLatest(a.fs, a.cfg.LogDir, a.cfg.LogPrefix)
		if err != nil {
			return nil, err
		}
		return []model.LogFile{lf}, nil
	}

	files, err := logsource.FindAll(a.fs, a.cfg.LogDir, a.cfg.LogPrefix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", logsource.ErrNoLogFound, a.cfg.LogDir)
	}
	return files, nil
}

func (a *Analyzer) processLog(ctx context.Context, renderer *report.Renderer, lf model.LogFile) error {
	reportPath := a.ReportPath(lf)
	logger := a.logger.With(zap.String("log", lf.Name))
	logger.Info("Analyzing log", zap.String("path", lf.Path), zap.String("report", reportPath))

	src, err := logsource.OpenFile(ctx, a.fs, lf.Path, logsource.FileConfig{MaxLineSize: a.cfg.MaxLineSize})
	if err != nil {
		logger.Error("Error open log file for read", zap.Error(err))
		return err
	}

	snap, err := ingest.NewProcessor(a.cfg.ErrorPercentThreshold, logger, lf.Name).Run(ctx, src)
	if err != nil {
		return err
	}
	a.recorder.ObserveScan(lf.Name, snap)

	entries := stats.Finalize(snap, a.cfg.ReportSize)
	if err := renderer.Write(reportPath, entries); err != nil {
		logger.Error("Error write report", zap.Error(err))
		return err
	}

	logger.Info("Report written",
		zap.String("report", reportPath),
		zap.Uint64("lines", snap.TotalLines),
		zap.Uint64("errors", snap.ErrorLines),
		zap.Int("paths", len(snap.PerPath)),
		zap.Int("entries", len(entries)),
	)
	return nil
}
