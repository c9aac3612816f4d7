// Package logging builds the process logger: structured, leveled slog output
// mirrored to the console and a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tweetwatch/tweetwatch/internal/config"
)

// New returns a logger writing to stdout and to cfg.File with rotation at
// cfg.MaxSizeMB megabytes, keeping cfg.MaxBackups rotated files.
func New(cfg config.LogConfig) *slog.Logger {
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, rotator), &slog.HandlerOptions{})
	return slog.New(handler)
}
