package observe

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceLogConfig configures the alignment decision log.
type TraceLogConfig struct {
	// Path is the log file. An empty path discards all records.
	Path string

	// MaxSizeMB rotates the file once it grows past this size.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// NewTraceLogger returns a debug-level text logger writing to a rotating
// file. The returned closer must be closed when the run ends.
func NewTraceLogger(cfg TraceLogConfig) (*slog.Logger, io.Closer) {
	if cfg.Path == "" {
		return slog.New(slog.DiscardHandler), io.NopCloser(nil)
	}
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), w
}
