// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures the process-wide slog logger.
//
// Output always goes to stderr; when a log directory is configured, a JSON
// copy of every record is also appended to a per-service daily file so a
// support bundle can be collected from one directory. Everything downstream
// logs through log/slog directly; this package only owns setup and teardown.
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.beacon/logs", // supports ~ expansion
//	    Service: "orchestrator",
//	    JSON:    true,
//	})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the minimum severity a record needs to be emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config holds logger options. The zero value logs Info and above to stderr
// as text, with no file output.
type Config struct {
	// Level is the minimum severity emitted.
	Level Level

	// LogDir, when non-empty, receives a beacon_<service>_<date>.log file
	// with a JSON copy of every record. Created if missing; "~" expands to
	// the home directory. A directory that cannot be created degrades to
	// stderr-only with a warning rather than failing startup.
	LogDir string

	// Service tags every record and names the log file. Default "beacon".
	Service string

	// JSON emits the stderr stream as JSON instead of text. File output is
	// always JSON.
	JSON bool
}

// Logger wraps the configured *slog.Logger together with the file handle it
// may hold open.
type Logger struct {
	slogger *slog.Logger
	file    *os.File
}

// New builds a Logger from config. Never fails: file problems degrade to
// stderr-only.
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "beacon"
	}
	opts := &slog.HandlerOptions{Level: config.Level.toSlog()}

	var stderrHandler slog.Handler
	if config.JSON {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	l := &Logger{}
	handler := stderrHandler
	if config.LogDir != "" {
		if file, err := openLogFile(config.LogDir, config.Service); err != nil {
			slog.New(stderrHandler).Warn("log file unavailable, stderr only",
				"dir", config.LogDir, "error", err)
		} else {
			l.file = file
			handler = &teeHandler{a: stderrHandler, b: slog.NewJSONHandler(file, opts)}
		}
	}

	l.slogger = slog.New(handler).With("service", config.Service)
	return l
}

// Default returns a stderr-only text logger at Info level.
func Default() *Logger {
	return New(Config{})
}

// Slog returns the underlying *slog.Logger, typically to install it with
// slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.slogger.Info(msg, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slogger.Warn(msg, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

// With returns a Logger carrying extra key-value context. The file handle
// stays owned by the parent; only Close the root Logger.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slogger: l.slogger.With(args...)}
}

// Close releases the log file, if one is open. Safe on a stderr-only logger
// and safe to call twice.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil
	return file.Close()
}

func openLogFile(dir, service string) (*os.File, error) {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("beacon_%s_%s.log", service, time.Now().UTC().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// teeHandler fans every record out to both destinations. A file write
// failure must not suppress the stderr line, so both handlers always run.
type teeHandler struct {
	a, b slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.a.Enabled(ctx, level) || h.b.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	errA := h.a.Handle(ctx, r.Clone())
	errB := h.b.Handle(ctx, r.Clone())
	if errA != nil {
		return errA
	}
	return errB
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{a: h.a.WithAttrs(attrs), b: h.b.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{a: h.a.WithGroup(name), b: h.b.WithGroup(name)}
}
