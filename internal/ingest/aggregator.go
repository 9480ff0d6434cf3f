package ingest

import (
	"github.com/tinytelemetry/loglatency/internal/logparse"
	"github.com/tinytelemetry/loglatency/internal/model"
)

// Aggregator folds parse results into per-path latency statistics.
// It owns all accumulation state for one scan and is not safe for
// concurrent use.
type Aggregator struct {
	perPath      map[string]*model.PathStats
	order        []string
	totalLines   uint64
	skippedLines uint64
	totalLatency float64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{perPath: make(map[string]*model.PathStats)}
}

// Consume accounts for one log line and returns the running line count.
// Every line counts towards the total, whatever its parse status.
func (a *Aggregator) Consume(res logparse.Result) uint64 {
	a.totalLines++

	switch res.Status {
	case logparse.Found:
		a.Add(res.Record)
	case logparse.Skipped:
		a.skippedLines++
	}

	return a.totalLines
}

// Add records one latency sample. It does not count a line; use Consume
// when feeding a scan.
func (a *Aggregator) Add(rec model.ParsedRecord) {
	a.totalLatency += rec.Latency

	stats, ok := a.perPath[rec.Path]
	if !ok {
		a.perPath[rec.Path] = &model.PathStats{
			Path:       rec.Path,
			Count:      1,
			LatencySum: rec.Latency,
			LatencyMax: rec.Latency,
			Samples:    []float64{rec.Latency},
		}
		a.order = append(a.order, rec.Path)
		return
	}

	stats.Count++
	stats.LatencySum += rec.Latency
	if rec.Latency > stats.LatencyMax {
		stats.LatencyMax = rec.Latency
	}
	stats.Samples = append(stats.Samples, rec.Latency)
}

// TotalLines returns the number of lines consumed so far.
func (a *Aggregator) TotalLines() uint64 { return a.totalLines }

// Paths returns the number of distinct paths seen so far.
func (a *Aggregator) Paths() int { return len(a.perPath) }

// Snapshot returns a deep copy of the accumulated state.
func (a *Aggregator) Snapshot() model.Snapshot {
	perPath := make(map[string]*model.PathStats, len(a.perPath))
	for path, stats := range a.perPath {
		samples := make([]float64, len(stats.Samples))
		copy(samples, stats.Samples)
		perPath[path] = &model.PathStats{
			Path:       stats.Path,
			Count:      stats.Count,
			LatencySum: stats.LatencySum,
			LatencyMax: stats.LatencyMax,
			Samples:    samples,
		}
	}

	order := make([]string, len(a.order))
	copy(order, a.order)

	return model.Snapshot{
		PerPath:      perPath,
		Order:        order,
		TotalLines:   a.totalLines,
		SkippedLines: a.skippedLines,
		TotalLatency: a.totalLatency,
	}
}
