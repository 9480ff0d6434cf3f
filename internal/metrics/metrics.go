// Package metrics records run diagnostics in a private prometheus registry
// and writes them in the node_exporter textfile format.
package metrics

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"

	"github.com/tinytelemetry/loglatency/internal/model"
)

// TextfileName is the name of the metrics file inside the monitor directory.
const TextfileName = "loglatency.prom"

const namespace = "loglatency"

// Recorder collects the counters of one process run.
type Recorder struct {
	registry *prometheus.Registry

	lines    *prometheus.GaugeVec
	errors   *prometheus.GaugeVec
	skipped  *prometheus.GaugeVec
	paths    *prometheus.GaugeVec
	latency  *prometheus.GaugeVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
	outcome  *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_lines",
			Help:      "Lines read from the log.",
		}, []string{"log"}),
		errors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_parse_errors",
			Help:      "Lines with a request path but no parsable request time.",
		}, []string{"log"}),
		skipped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_skipped_lines",
			Help:      "Lines without a request path.",
		}, []string{"log"}),
		paths: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_paths",
			Help:      "Distinct request paths in the log.",
		}, []string{"log"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_request_time_seconds",
			Help:      "Sum of request_time over all parsed lines.",
		}, []string{"log"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_outcome",
			Help:      "1 for the outcome of the last run, 0 otherwise.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(r.lines, r.errors, r.skipped, r.paths, r.latency, r.duration, r.lastRun, r.outcome)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveScan records the counters of one scanned log.
func (r *Recorder) ObserveScan(logName string, snap model.Snapshot) {
	r.lines.WithLabelValues(logName).Set(float64(snap.TotalLines))
	r.errors.WithLabelValues(logName).Set(float64(snap.ErrorLines))
	r.skipped.WithLabelValues(logName).Set(float64(snap.SkippedLines))
	r.paths.WithLabelValues(logName).Set(float64(len(snap.PerPath)))
	r.latency.WithLabelValues(logName).Set(snap.TotalLatency)
}

// ObserveRun records how the run ended. Every known outcome is exported so
// that alerts can match on value rather than on series presence.
func (r *Recorder) ObserveRun(outcome string, known []string, took time.Duration, at time.Time) {
	for _, o := range known {
		r.outcome.WithLabelValues(o).Set(0)
	}
	r.outcome.WithLabelValues(outcome).Set(1)
	r.duration.Set(took.Seconds())
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to <dir>/loglatency.prom on fs. The file
// is replaced through a rename so collectors never read half of it.
func (r *Recorder) WriteTextfile(fs afero.Fs, dir string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metrics: mkdir %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fs, dir, "."+TextfileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("metrics: create: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("metrics: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("metrics: close %s: %w", tmpName, err)
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("metrics: chmod %s: %w", tmpName, err)
	}
	if err := fs.Rename(tmpName, filepath.Join(dir, TextfileName)); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("metrics: rename %s: %w", tmpName, err)
	}
	return nil
}
