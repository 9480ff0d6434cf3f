package logparse

import (
	"regexp"
	"strconv"

	"github.com/tinytelemetry/loglatency/internal/model"
)

// PathRegex matches the URL path of the quoted request field, e.g.
// "/api/v2/banner/25019354" in `"GET /api/v2/banner/25019354 HTTP/1.1"`.
// The leading \B keeps dates such as 29/Jun/2017 from matching.
var PathRegex = regexp.MustCompile(`\B(?:/[\w?=_&-]+)+`)

// LatencyRegex matches a decimal request_time preceded by whitespace.
var LatencyRegex = regexp.MustCompile(`\s(\d+\.\d+)`)

// Status classifies the outcome of parsing one line.
type Status int

const (
	// Found means both the path and the latency were extracted.
	Found Status = iota
	// Skipped means the line carries no path; it is not an error.
	Skipped
	// Malformed means a path was found but no usable latency followed it.
	Malformed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Skipped:
		return "skipped"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result is the outcome of ParseLine. Record is set only for Found.
type Result struct {
	Status Status
	Record model.ParsedRecord
}

// MatchPath returns the first path token of line and the remainder of the
// line after it.
func MatchPath(line string) (path, rest string, ok bool) {
	loc := PathRegex.FindStringIndex(line)
	if loc == nil {
		return "", "", false
	}
	return line[loc[0]:loc[1]], line[loc[1]:], true
}

// MatchLatency returns the first whitespace-preceded decimal in s.
func MatchLatency(s string) (float64, bool) {
	m := LatencyRegex.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLine extracts the request path and request_time from one access log line.
func ParseLine(line string) Result {
	path, rest, ok := MatchPath(line)
	if !ok {
		return Result{Status: Skipped}
	}

	latency, ok := MatchLatency(rest)
	if !ok {
		return Result{Status: Malformed}
	}

	return Result{
		Status: Found,
		Record: model.ParsedRecord{Path: path, Latency: latency},
	}
}
