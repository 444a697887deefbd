// Package logging builds slog loggers for tcgscan commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/LdDl/tcg-scanner/config"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output is console destination, stderr when nil
	Output io.Writer
	// File enables rotated log file in addition to console output
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, errors.Wrap(err, "ensure log directory")
		}
		output = io.MultiWriter(output, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    opts.MaxSizeMB,
			MaxAge:     opts.MaxAgeDays,
			MaxBackups: opts.MaxBackups,
		})
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(output, handlerOpts)), nil
	case "console", "":
		return slog.New(slog.NewTextHandler(output, handlerOpts)), nil
	default:
		return nil, errors.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates a logger using application config.
func NewFromConfig(cfg config.Logging) (*slog.Logger, error) {
	return New(Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

// NewNop returns logger discarding every record.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
