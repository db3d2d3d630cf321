// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/uptention/uptention/internal/nft"
)

const catalogDebounce = 500 * time.Millisecond

// startCatalogWatcher reloads the image catalog when its file changes.
// The parent directory is watched so editors that replace the file by
// rename are picked up. reloaded is called after each attempt.
func startCatalogWatcher(ctx context.Context, catalog *nft.Catalog, reloaded func(count int, err error)) error {
	path := catalog.Path()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(catalogDebounce, func() {
					err := catalog.Reload()
					if reloaded != nil {
						reloaded(len(catalog.Ranks()), err)
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Printf("⚠️  File watcher error: %v\n", err)
			}
		}
	}()

	return nil
}
