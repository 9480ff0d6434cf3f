package ingest

import (
	"context"
	"fmt"

	"github.com/tinytelemetry/loglatency/internal/logparse"
	"github.com/tinytelemetry/loglatency/internal/model"
	"go.uber.org/zap"
)

// Processor drives one scan: it parses each line, folds it into the
// aggregator and trips the error-rate breaker on malformed lines.
// A Processor is single use and must not be shared between goroutines.
type Processor struct {
	aggregator *Aggregator
	monitor    *ErrorRateMonitor
	logger     *zap.Logger
	sourceName string
}

// NewProcessor creates a processor with the given error threshold in percent.
func NewProcessor(errorPercentThreshold int, logger *zap.Logger, sourceName string) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		aggregator: NewAggregator(),
		monitor:    NewErrorRateMonitor(errorPercentThreshold),
		logger:     logger,
		sourceName: sourceName,
	}
}

// ProcessLine handles a single log line. The only error it returns is
// *ErrorRateExceededError.
func (p *Processor) ProcessLine(line string) error {
	return p.ProcessEnvelope(model.IngestEnvelope{
		Source: p.sourceName,
		LineNo: p.aggregator.TotalLines() + 1,
		Line:   line,
	})
}

// ProcessEnvelope handles one line delivered by a source. A truncated line
// lost its tail, where request_time lives, so it is malformed unless it
// carries no path at all.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) error {
	res := logparse.ParseLine(env.Line)
	if env.Truncated && res.Status == logparse.Found {
		res = logparse.Result{Status: logparse.Malformed}
	}
	total := p.aggregator.Consume(res)

	if res.Status != logparse.Malformed {
		return nil
	}

	source := env.Source
	if source == "" {
		source = p.sourceName
	}
	p.logger.Debug("Error parsing line",
		zap.String("source", source),
		zap.Uint64("line", env.LineNo),
		zap.Bool("truncated", env.Truncated),
		zap.String("raw", env.Line),
	)

	return p.monitor.Observe(total)
}

// Snapshot returns the accumulated statistics.
func (p *Processor) Snapshot() model.Snapshot {
	snap := p.aggregator.Snapshot()
	snap.ErrorLines = p.monitor.Errors()
	return snap
}

// Run drains src in order and returns the final snapshot. Any early return
// stops src and carries no snapshot.
func (p *Processor) Run(ctx context.Context, src LineSource) (model.Snapshot, error) {
	defer src.Stop()

	if p.sourceName == "" {
		p.sourceName = src.Name()
	}

	for {
		select {
		case <-ctx.Done():
			return model.Snapshot{}, ctx.Err()
		case env, ok := <-src.Lines():
			if !ok {
				if err := src.Err(); err != nil {
					return model.Snapshot{}, fmt.Errorf("ingest: read %s: %w", p.sourceName, err)
				}
				return p.Snapshot(), nil
			}
			if err := p.ProcessEnvelope(env); err != nil {
				p.logger.Error("The percentage of errors is greater than the threshold",
					zap.String("source", p.sourceName),
					zap.Uint64("errors", p.monitor.Errors()),
					zap.Uint64("lines", p.aggregator.TotalLines()),
					zap.Float64("rate", p.monitor.Rate(p.aggregator.TotalLines())),
					zap.Int("threshold", p.monitor.Threshold()),
				)
				return model.Snapshot{}, err
			}
		}
	}
}
