// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package redactor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// WatchOverride layers a rule file on top of the embedded baseline and
// reloads it whenever it changes on disk.
//
// # Description
//
// Deployments that need extra patterns (locale-specific ID formats, internal
// identifiers) point BEACON_PII_RULES_PATH at a YAML file with the same
// schema as the embedded table. The file replaces the whole table; a broken
// edit is logged and the previous table stays installed, so a bad rule push
// can never disable redaction.
//
// Blocks until ctx is cancelled; run it in its own goroutine.
func (e *Engine) WatchOverride(ctx context.Context, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if raw, err := os.ReadFile(path); err == nil {
		if lerr := e.load(raw); lerr != nil {
			logger.Error("PII rule override rejected at startup, keeping embedded rules",
				"path", path, "error", lerr)
		} else {
			logger.Info("PII rule override installed", "path", path)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rule watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			raw, rerr := os.ReadFile(path)
			if rerr != nil {
				logger.Error("failed to read PII rule override", "path", path, "error", rerr)
				continue
			}
			if lerr := e.load(raw); lerr != nil {
				logger.Error("PII rule override rejected, keeping previous rules",
					"path", path, "error", lerr)
				continue
			}
			logger.Info("PII rule override reloaded", "path", path)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("rule watcher error", "error", werr)
		}
	}
}
