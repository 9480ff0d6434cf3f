package model

import "time"

// ParsedRecord is one successfully parsed access log line.
type ParsedRecord struct {
	Path    string
	Latency float64 // request_time, seconds
}

// PathStats accumulates latency samples for a single request path.
// Count always equals len(Samples) and LatencyMax is the largest sample.
type PathStats struct {
	Path       string
	Count      uint64
	LatencySum float64
	LatencyMax float64
	Samples    []float64
}

// Snapshot is the frozen result of scanning one log file.
// PerPath and Order are copies; nothing in a Snapshot aliases scan state.
type Snapshot struct {
	PerPath      map[string]*PathStats
	Order        []string // paths in first-seen order
	TotalLines   uint64
	ErrorLines   uint64
	SkippedLines uint64
	TotalLatency float64
}

// ReportEntry is one row of the latency report.
// JSON names are the ones consumed by the report template.
type ReportEntry struct {
	URL            string  `json:"url"`
	Count          uint64  `json:"count"`
	CountPercent   float64 `json:"count_perc"`
	LatencySum     float64 `json:"time_sum"`
	LatencyPercent float64 `json:"time_perc"`
	LatencyAvg     float64 `json:"time_avg"`
	LatencyMax     float64 `json:"time_max"`
	LatencyMedian  float64 `json:"time_med"`
}

// LogFile is a dated access log found in the log directory.
type LogFile struct {
	Name        string
	Path        string
	Date        time.Time
	Compression string // "", "gzip" or "zstd"
}

// RunConfig is the immutable configuration of one analyzer run.
type RunConfig struct {
	ReportSize            int    `validate:"gte=0"`
	ErrorPercentThreshold int    `validate:"gte=0,lte=100"`
	ReportDir             string `validate:"required"`
	LogDir                string `validate:"required"`
	ReportNamePattern     string `validate:"required"`
	MonitorPath           string
	LogPrefix             string `validate:"required"`
	TemplatePath          string
	ProcessAll            bool
	LogLevel              string `validate:"omitempty,oneof=debug info warn error"`
	MaxLineSize           int    `validate:"gte=0"`
}
