package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/loglatency/internal/ingest"
	"github.com/tinytelemetry/loglatency/internal/model"
	"github.com/tinytelemetry/loglatency/internal/report"
)

const (
	logDir       = "/var/log/nginx"
	reportDir    = "/srv/reports"
	templatePath = "/etc/loglatency/report.html"
)

func accessLine(path, latency string) string {
	return fmt.Sprintf(`1.196.116.32 -  - [29/Jun/2017:03:50:22 +0300] "GET %s HTTP/1.1" 200 927 "-" "Lynx/2.8.8dev.9 libwww-FM/2.14 SSL-MM/1.4.1 GNUTLS/2.10.5" "-" "1498697422-2190034393-4708-9752759" "dc7161be3" %s`, path, latency)
}

func bannerLog() string {
	return strings.Join([]string{
		accessLine("/api/v2/banner/25019354", "0.393"),
		accessLine("/api/v2/banner/25019353", "0.392"),
		accessLine("/api/v2/banner/25019352", "0.390"),
	}, "\n") + "\n"
}

func testConfig() model.RunConfig {
	cfg := model.DefaultRunConfig()
	cfg.LogDir = logDir
	cfg.ReportDir = reportDir
	cfg.TemplatePath = templatePath
	cfg.MonitorPath = ""
	return cfg
}

func newFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(logDir, 0o755))
	require.NoError(t, afero.WriteFile(fs, templatePath, []byte("$table_json"), 0o644))
	return fs
}

func writeLog(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(logDir, name), []byte(content), 0o644))
}

func readReport(t *testing.T, fs afero.Fs, name string) []model.ReportEntry {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.Join(reportDir, name))
	require.NoError(t, err)
	var entries []model.ReportEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	return entries
}

func TestRunWritesRankedReport(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-ui.log-20170629", accessLine("/old", "9.0")+"\n")
	writeLog(t, fs, "nginx-access-ui.log-20170630", bannerLog())

	outcome, err := New(testConfig(), WithFs(fs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, outcome)

	entries := readReport(t, fs, "report-2017.06.30.html")
	require.Len(t, entries, 3)
	assert.Equal(t, "/api/v2/banner/25019354", entries[0].URL)
	assert.Equal(t, "/api/v2/banner/25019353", entries[1].URL)
	assert.Equal(t, "/api/v2/banner/25019352", entries[2].URL)
	for i, want := range []float64{33.44680851, 33.36170213, 33.19148936} {
		assert.Equal(t, uint64(1), entries[i].Count)
		assert.InDelta(t, 33.33333333, entries[i].CountPercent, 1e-9)
		assert.InDelta(t, want, entries[i].LatencyPercent, 1e-9)
		assert.Equal(t, 0.0, entries[i].LatencyMedian)
	}

	exists, err := report.Exists(fs, filepath.Join(reportDir, "report-2017.06.30.html"))
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = report.Exists(fs, filepath.Join(reportDir, "report-2017.06.29.html"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunReadsGzipLog(t *testing.T) {
	t.Parallel()
	fs := newFs(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(bannerLog()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	writeLog(t, fs, "nginx-access-ui.log-20170630.gz", buf.String())

	outcome, err := New(testConfig(), WithFs(fs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, outcome)
	assert.Len(t, readReport(t, fs, "report-2017.06.30.html"), 3)
}

func TestRunOverlongLineIsMalformed(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	huge := accessLine("/api/v2/slot/"+strings.Repeat("a", 2<<20), "0.500")
	lines := strings.Split(strings.TrimSuffix(bannerLog(), "\n"), "\n")
	content := strings.Join([]string{lines[0], huge, lines[1], lines[2]}, "\n") + "\n"
	writeLog(t, fs, "nginx-access-ui.log-20170630", content)

	a := New(testConfig(), WithFs(fs))
	outcome, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, outcome)

	entries := readReport(t, fs, "report-2017.06.30.html")
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotContains(t, e.URL, "/api/v2/slot/")
		assert.InDelta(t, 25.0, e.CountPercent, 1e-9)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-ui.log-20170630", bannerLog())
	a := New(testConfig(), WithFs(fs))

	outcome, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeWritten, outcome)
	first, err := afero.ReadFile(fs, filepath.Join(reportDir, "report-2017.06.30.html"))
	require.NoError(t, err)

	// Any parse would now trip the breaker.
	writeLog(t, fs, "nginx-access-ui.log-20170630", accessLine("/broken", "-")+"\n")

	outcome, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReportExists, outcome)

	second, err := afero.ReadFile(fs, filepath.Join(reportDir, "report-2017.06.30.html"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunErrorRateExceededWritesNothing(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	lines := []string{accessLine("/broken", "-"), accessLine("/broken", "-")}
	for i := 0; i < 50; i++ {
		lines = append(lines, accessLine("/ok", "0.100"))
	}
	writeLog(t, fs, "nginx-access-ui.log-20170630", strings.Join(lines, "\n"))

	outcome, err := New(testConfig(), WithFs(fs)).Run(context.Background())
	require.ErrorIs(t, err, ingest.ErrErrorRateExceeded)
	assert.Equal(t, OutcomeFailed, outcome)

	exists, err := afero.DirExists(fs, reportDir)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunNoLog(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-api.log-20170630", bannerLog())

	outcome, err := New(testConfig(), WithFs(fs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoLog, outcome)

	cfg := testConfig()
	cfg.LogDir = "/nowhere"
	outcome, err = New(cfg, WithFs(fs)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoLog, outcome)
}

func TestRunMissingTemplate(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-ui.log-20170630", bannerLog())
	cfg := testConfig()
	cfg.TemplatePath = "/etc/loglatency/missing.html"

	outcome, err := New(cfg, WithFs(fs)).Run(context.Background())
	var writeErr *report.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, OutcomeFailed, outcome)

	exists, err := report.Exists(fs, filepath.Join(reportDir, "report-2017.06.30.html"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunDefaultTemplate(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-ui.log-20170630", bannerLog())
	cfg := testConfig()
	cfg.TemplatePath = ""

	_, err := New(cfg, WithFs(fs)).Run(context.Background())
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, filepath.Join(reportDir, "report-2017.06.30.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"url":"/api/v2/banner/25019354"`)
	assert.NotContains(t, string(data), report.TableMarker)
}

func TestRunReportSizeTruncates(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-ui.log-20170630", bannerLog())
	cfg := testConfig()
	cfg.ReportSize = 1

	_, err := New(cfg, WithFs(fs)).Run(context.Background())
	require.NoError(t, err)

	entries := readReport(t, fs, "report-2017.06.30.html")
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/v2/banner/25019354", entries[0].URL)
}

func TestRunProcessAll(t *testing.T) {
	t.Parallel()
	fs := newFs(t)
	writeLog(t, fs, "nginx-access-ui.log-20170628", accessLine("/a", "1.0")+"\n")
	writeLog(t, fs, "nginx-access-ui.log-20170629", accessLine("/b", "2.0")+"\n")
	writeLog(t, fs, "nginx-access-ui.log-20170630", bannerLog())
	require.NoError(t, fs.MkdirAll(reportDir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(reportDir, "report-2017.06.29.html"), []byte("keep"), 0o644))

	cfg := testConfig()
	cfg.ProcessAll = true
	a := New(cfg, WithFs(fs), WithParallelism(2))

	outcome, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWritten, outcome)

	assert.Equal(t, "/a", readReport(t, fs, "report-2017.06.28.html")[0].URL)
	assert.Len(t, readReport(t, fs, "report-2017.06.30.html"), 3)
	kept, err := afero.ReadFile(fs, filepath.Join(reportDir, "report-2017.06.29.html"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(kept))

	outcome, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReportExists, outcome)
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"written", "report_exists", "no_log", "failed"}, Outcomes())
	assert.Equal(t, "unknown", Outcome(99).String())
}
