package logparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bannerLine = `1.196.116.32 -  - [29/Jun/2017:03:50:22 +0300] "GET /api/v2/banner/25019354 HTTP/1.1" 200 927 "-" "Lynx/2.8.8dev.9 libwww-FM/2.14 SSL-MM/1.4.1 GNUTLS/2.10.5" "-" "1498697422-2190034393-4708-9752759" "dc7161be3" 0.390`

func TestMatchPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want string
		ok   bool
	}{
		{"access log line", bannerLine, "/api/v2/banner/25019354", true},
		{"query string", `"GET /api/v2/slot/4705/groups?id=1&name=x HTTP/1.1" 0.1`, "/api/v2/slot/4705/groups?id=1&name=x", true},
		{"line start", "/export/appinstall_raw/2017-06-29/ 0.003", "/export/appinstall_raw/2017-06-29", true},
		{"date is not a path", "[29/Jun/2017:03:50:22 +0300] 0.5", "", false},
		{"empty", "", "", false},
		{"first match wins", `"GET /first/one HTTP/1.1" "/second/two" 0.2`, "/first/one", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _, ok := MatchPath(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, path)
		})
	}
}

func TestMatchLatency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{` HTTP/1.1" 200 927 "-" 0.390`, 0.390, true},
		{" 12.5 0.3", 12.5, true},
		{` HTTP/1.1" 200 927`, 0, false},
		{"/1.1 GNUTLS/2.10.5", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := MatchLatency(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	res := ParseLine(bannerLine)
	require.Equal(t, Found, res.Status)
	assert.Equal(t, "/api/v2/banner/25019354", res.Record.Path)
	assert.InDelta(t, 0.390, res.Record.Latency, 1e-12)

	assert.Equal(t, Skipped, ParseLine(`1.2.3.4 - - [29/Jun/2017:03:50:22 +0300] "-" 400 0 "-" "-" "-" "-" "-" 0.000`).Status)
	assert.Equal(t, Malformed, ParseLine(`"GET /api/v2/banner/1 HTTP/1.1" 200 927 "-" "-" "-" "-" "-" -`).Status)
}

func TestParseLineLatencyMustFollowPath(t *testing.T) {
	t.Parallel()
	// The only decimal sits before the request field.
	res := ParseLine(`host 0.5 "GET /api/v1/x HTTP/1.1" 200`)
	assert.Equal(t, Malformed, res.Status)
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "malformed", Malformed.String())
	assert.Equal(t, "unknown", Status(42).String())
}
