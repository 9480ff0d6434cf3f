package ingest

import (
	"errors"
	"fmt"
)

// ErrErrorRateExceeded is matched by *ErrorRateExceededError via errors.Is.
var ErrErrorRateExceeded = errors.New("ingest: parse error rate exceeded")

// ErrorRateExceededError reports the counts at the moment the breaker tripped.
type ErrorRateExceededError struct {
	Errors    uint64
	Lines     uint64
	Rate      float64
	Threshold int
}

func (e *ErrorRateExceededError) Error() string {
	return fmt.Sprintf("ingest: parse error rate %.2f%% (%d of %d lines) reached threshold %d%%",
		e.Rate, e.Errors, e.Lines, e.Threshold)
}

// Is makes errors.Is(err, ErrErrorRateExceeded) work.
func (e *ErrorRateExceededError) Is(target error) bool {
	return target == ErrErrorRateExceeded
}

// ErrorRateMonitor is a fail-fast breaker over malformed lines.
type ErrorRateMonitor struct {
	threshold int
	errors    uint64
}

// NewErrorRateMonitor creates a monitor tripping at threshold percent.
func NewErrorRateMonitor(threshold int) *ErrorRateMonitor {
	return &ErrorRateMonitor{threshold: threshold}
}

// Observe records one malformed line given the number of lines consumed so
// far, including that line. It returns *ErrorRateExceededError once the
// error rate reaches the threshold.
func (m *ErrorRateMonitor) Observe(totalLines uint64) error {
	m.errors++

	rate := m.Rate(totalLines)
	if totalLines == 0 || rate < float64(m.threshold) {
		return nil
	}

	return &ErrorRateExceededError{
		Errors:    m.errors,
		Lines:     totalLines,
		Rate:      rate,
		Threshold: m.threshold,
	}
}

// Rate returns the error percentage for the given line count.
func (m *ErrorRateMonitor) Rate(totalLines uint64) float64 {
	if totalLines == 0 {
		return 0
	}
	return float64(m.errors) * 100 / float64(totalLines)
}

// Errors returns the number of malformed lines observed.
func (m *ErrorRateMonitor) Errors() uint64 { return m.errors }

// Threshold returns the configured threshold in percent.
func (m *ErrorRateMonitor) Threshold() int { return m.threshold }
