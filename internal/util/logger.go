// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package util

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the process-wide logger. It discards debug output until
// InitLogger or InitServerLogger runs.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// debugLevel returns the level selected by UPTENTION_DEBUG.
func debugLevel() slog.Level {
	if os.Getenv("UPTENTION_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// InitLogger initializes the global logger for interactive CLI output.
// Set UPTENTION_DEBUG=1 environment variable to enable debug logging
func InitLogger() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: debugLevel(),
		// Remove timestamp and level for cleaner CLI output
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	})
	Logger = slog.New(handler)
}

// InitServerLogger initializes the global logger for the daemon, keeping
// timestamps and levels.
func InitServerLogger(w io.Writer) {
	Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: debugLevel()}))
}

// Debug logs a debug message (only shown when UPTENTION_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
