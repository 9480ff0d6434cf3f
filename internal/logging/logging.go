// Package logging builds the process logger. Lines look like
//
//	[2017.06.30 03:50:22] I Start analyzer {"log": "nginx-access-ui.log-20170630.gz"}
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the name of the process log inside the monitor directory.
const FileName = "log_analyzer.log"

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// ParseLevel converts a configured level name, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("[2006.01.02 15:04:05]"),
		EncodeLevel:      shortLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// shortLevelEncoder writes the first letter of the level name.
func shortLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(l.CapitalString()[:1])
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w zapcore.WriteSyncer, level string) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), w, ParseLevel(level))
	return zap.New(core, zap.AddStacktrace(zapcore.FatalLevel))
}

// New builds a logger appending to <monitorPath>/log_analyzer.log. An empty
// monitorPath logs to stderr. The returned func flushes and closes the file.
func New(fs afero.Fs, monitorPath, level string) (*zap.Logger, func(), error) {
	if monitorPath == "" {
		logger := NewWithWriter(zapcore.Lock(os.Stderr), level)
		return logger, func() { _ = logger.Sync() }, nil
	}

	if err := fs.MkdirAll(monitorPath, defaultDirMode); err != nil {
		return nil, nil, fmt.Errorf("logging: mkdir %s: %w", monitorPath, err)
	}

	path := filepath.Join(monitorPath, FileName)
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	logger := NewWithWriter(zapcore.Lock(zapcore.AddSync(f)), level)
	return logger, func() {
		_ = logger.Sync()
		_ = f.Close()
	}, nil
}
