// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptention/uptention/internal/nft"
)

func TestCatalogWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("images: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	catalog, err := nft.NewCatalog(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan int, 4)
	if err := startCatalogWatcher(ctx, catalog, func(count int, err error) {
		if err == nil {
			reloaded <- count
		}
	}); err != nil {
		t.Fatal(err)
	}

	doc := "images:\n  \"4\":\n    uri: https://gateway.test/four.png\n"
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case count := <-reloaded:
		if count != 4 {
			t.Fatalf("ranks after reload = %d, want 4", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	if _, err := catalog.Lookup("4"); err != nil {
		t.Fatalf("Lookup(4): %v", err)
	}
}

func TestCatalogWatcher_NoPath(t *testing.T) {
	catalog, err := nft.NewCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	if err := startCatalogWatcher(context.Background(), catalog, nil); err != nil {
		t.Fatalf("watcher without catalog file: %v", err)
	}
}
