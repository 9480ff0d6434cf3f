// Package stats turns a scan snapshot into ranked report entries.
package stats

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/tinytelemetry/loglatency/internal/model"
)

// Precision is the number of decimal places kept in report values.
const Precision = 8

// Round rounds v to places decimal digits, half to even on the exact
// decimal expansion of v.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Median returns the median of samples without modifying them.
// Even-length input yields the mean of the two middle values.
func Median(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}

// Entry derives the report row for one path.
// The median is rounded to a whole number of seconds.
func Entry(ps *model.PathStats, totalLines uint64, totalLatency float64) model.ReportEntry {
	var avg float64
	if ps.Count > 0 {
		avg = Round(ps.LatencySum/float64(ps.Count), Precision)
	}

	return model.ReportEntry{
		URL:            ps.Path,
		Count:          ps.Count,
		CountPercent:   Round(percent(float64(ps.Count), float64(totalLines)), Precision),
		LatencySum:     Round(ps.LatencySum, Precision),
		LatencyPercent: Round(percent(ps.LatencySum, totalLatency), Precision),
		LatencyAvg:     avg,
		LatencyMax:     Round(ps.LatencyMax, Precision),
		// TODO: the integer median drops sub-second precision; confirm with
		// report consumers before changing it.
		LatencyMedian: math.RoundToEven(Median(ps.Samples)),
	}
}

// Entries derives one entry per path in first-seen order, without sorting
// or truncation.
func Entries(snap model.Snapshot) []model.ReportEntry {
	entries := make([]model.ReportEntry, 0, len(snap.Order))
	for _, path := range snap.Order {
		ps, ok := snap.PerPath[path]
		if !ok {
			continue
		}
		entries = append(entries, Entry(ps, snap.TotalLines, snap.TotalLatency))
	}
	return entries
}

// Finalize ranks entries by total latency, highest first, and keeps at
// most reportSize of them. Ties keep first-seen order.
func Finalize(snap model.Snapshot, reportSize int) []model.ReportEntry {
	entries := Entries(snap)

	slices.SortStableFunc(entries, func(a, b model.ReportEntry) int {
		return cmp.Compare(b.LatencySum, a.LatencySum)
	})

	if reportSize < 0 {
		reportSize = 0
	}
	if len(entries) > reportSize {
		entries = entries[:reportSize]
	}
	return entries
}
