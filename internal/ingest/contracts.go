package ingest

import "github.com/tinytelemetry/loglatency/internal/model"

// LineSource delivers the lines of one log in file order.
// logsource.FileSource satisfies it.
type LineSource interface {
	Name() string
	Lines() <-chan model.IngestEnvelope
	Stop()
	Err() error
}
