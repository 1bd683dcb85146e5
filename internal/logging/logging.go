// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"agentctl/internal/config"
)

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a text logger writing to stderr and, when cfg.File is set, to a
// rotating file as well. The returned closer releases the file and is never nil.
func New(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	w := io.MultiWriter(stderr, file)
	return slog.New(slog.NewTextHandler(w, opts)), file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
