package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tinytelemetry/loglatency/internal/analyzer"
	"github.com/tinytelemetry/loglatency/internal/ingest"
	"github.com/tinytelemetry/loglatency/internal/logging"
	"github.com/tinytelemetry/loglatency/internal/model"
	"github.com/tinytelemetry/loglatency/internal/report"
)

// configFailure maps a loadConfig error to an exit code. Empty and
// unreadable files mean there is nothing to do.
func configFailure(stderr io.Writer, err error) int {
	if errors.Is(err, ErrEmptyConfig) || errors.Is(err, ErrConfigUnreadable) {
		fmt.Fprintf(stderr, "Nothing to do: %v\n", err)
		return exitOK
	}
	fmt.Fprintf(stderr, "Error loading config: %v\n", err)
	return exitError
}

func analyze(fs afero.Fs, cfg model.RunConfig, requested, used string, stderr io.Writer) int {
	logger, cleanup, err := logging.New(fs, cfg.MonitorPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer cleanup()

	logger.Info("Start analyzer", zap.String("version", version))
	switch {
	case used != "":
		logger.Info("Config loaded", zap.String("config", used))
	case requested != "":
		logger.Warn("Config file not found, the default config is used", zap.String("config", requested))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := analyzer.New(cfg, analyzer.WithFs(fs), analyzer.WithLogger(logger))
	outcome, runErr := a.Run(ctx)

	if cfg.MonitorPath != "" {
		if err := a.Recorder().WriteTextfile(fs, cfg.MonitorPath); err != nil {
			logger.Warn("Error write metrics textfile", zap.Error(err))
		}
	}

	var rateErr *ingest.ErrorRateExceededError
	var writeErr *report.WriteError
	switch {
	case runErr == nil:
		logger.Info("Done", zap.Stringer("outcome", outcome))
		return exitOK
	case errors.As(runErr, &rateErr):
		logger.Error("Analysis aborted: too many unparsable lines",
			zap.Float64("rate", rateErr.Rate),
			zap.Int("threshold", rateErr.Threshold),
		)
	case errors.As(runErr, &writeErr):
		logger.Error("Analysis aborted: report not written", zap.String("report", writeErr.Path), zap.Error(runErr))
	default:
		logger.Error("Analysis failed", zap.Error(runErr))
	}
	fmt.Fprintf(stderr, "Error: %v\n", runErr)
	return exitError
}
