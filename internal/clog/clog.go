// Package clog provides the compiler's structured logger: silent by
// default, switched to a text handler on stderr by --verbose. sigmac is
// a one-shot batch process, so output always goes to stderr and there is
// no file rotation.
package clog

import (
	"io"
	"log/slog"
	"os"
)

// L is the package-global logger, initialized to discard everything until
// Init is called.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures Init.
type Options struct {
	Enabled bool       // if false, all logging is discarded
	Level   slog.Level // minimum level when enabled; default LevelInfo
}

// Init configures L. Call once from cmd/sigmac's root command before
// running the pipeline.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	L = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
