package logsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/tinytelemetry/loglatency/internal/model"
)

const (
	// DefaultFileBuffer is the default channel buffer size for file lines.
	DefaultFileBuffer = 4096

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single line.
	// Longer lines are cut to this size and flagged as truncated.
	DefaultMaxLineSize = 1024 * 1024 // 1MB

	readerSize = 64 * 1024
)

// Compression names reported in model.LogFile.
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// FileConfig holds tunable parameters for the file source.
type FileConfig struct {
	BufferSize  int
	MaxLineSize int
}

// FileSource reads one log file line by line, decompressing it on the fly
// when needed. Lines are delivered in file order, blank lines included.
// A line longer than the configured maximum is delivered cut short with
// Truncated set.
type FileSource struct {
	name   string
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

// CompressionOf infers the compression of a log from its file name.
func CompressionOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return CompressionGzip
	case ".zst":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// OpenReader opens path on fs and wraps it in the matching decompressor.
func OpenReader(fs afero.Fs, path string) (io.ReadCloser, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logsource: open %s: %w", path, err)
	}

	switch CompressionOf(path) {
	case CompressionGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("logsource: gzip %s: %w", path, err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("logsource: zstd %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		return &stackedReader{Reader: rc, closers: []io.Closer{rc, f}}, nil
	default:
		return f, nil
	}
}

// stackedReader closes a decompressor and its underlying file in order.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenFile opens the log at path and starts reading it in a background
// goroutine. Open and decompressor setup errors are returned directly.
// Later read errors are reported by Err.
func OpenFile(ctx context.Context, fs afero.Fs, path string, conf ...FileConfig) (*FileSource, error) {
	bufferSize := DefaultFileBuffer
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}

	rc, err := OpenReader(fs, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		name:   filepath.Base(path),
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, rc, maxLineSize)
	return s, nil
}

func (s *FileSource) read(ctx context.Context, rc io.ReadCloser, maxLineSize int) {
	defer close(s.ch)
	defer func() { _ = rc.Close() }()

	br := bufio.NewReaderSize(rc, readerSize)

	var (
		lineNo    uint64
		line      []byte
		truncated bool
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if err != io.EOF {
				s.err = fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			return
		}

		// Bytes past maxLineSize are dropped up to the end of the line.
		if room := maxLineSize - len(line); len(chunk) > room {
			chunk = chunk[:max(room, 0)]
			truncated = true
		}
		line = append(line, chunk...)
		if isPrefix {
			continue
		}

		lineNo++
		env := model.IngestEnvelope{Source: s.name, LineNo: lineNo, Line: string(line), Truncated: truncated}
		select {
		case s.ch <- env:
		case <-ctx.Done():
			return
		}
		line = line[:0]
		truncated = false
	}
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Stop()                              { s.once.Do(s.cancel) }
func (s *FileSource) Name() string                       { return s.name }

// Err returns the read error, if any. It is only meaningful after Lines
// has been closed.
func (s *FileSource) Err() error { return s.err }
