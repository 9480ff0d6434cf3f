package model

// Defaults shared by the CLI and the analyzer.
const (
	DefaultReportSize            = 1000
	DefaultErrorPercentThreshold = 80
	DefaultReportDir             = "./reports"
	DefaultLogDir                = "./log"
	DefaultReportNamePattern     = "report-{date}.html"
	DefaultMonitorPath           = "./monitoring"
	DefaultLogPrefix             = "nginx-access-ui"
	DefaultLogLevel              = "info"
	DefaultMaxLineSize           = 1024 * 1024 // 1MB
)

// DefaultRunConfig returns the built-in configuration.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		ReportSize:            DefaultReportSize,
		ErrorPercentThreshold: DefaultErrorPercentThreshold,
		ReportDir:             DefaultReportDir,
		LogDir:                DefaultLogDir,
		ReportNamePattern:     DefaultReportNamePattern,
		MonitorPath:           DefaultMonitorPath,
		LogPrefix:             DefaultLogPrefix,
		LogLevel:              DefaultLogLevel,
		MaxLineSize:           DefaultMaxLineSize,
	}
}
