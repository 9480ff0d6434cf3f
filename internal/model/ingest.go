package model

// IngestEnvelope carries one raw log line with source metadata.
// It is the transport contract between a log source and the scan loop.
type IngestEnvelope struct {
	Source string
	LineNo uint64
	Line   string

	// Truncated is set when Line was cut at the source's maximum line size.
	Truncated bool
}
