// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ContentPathPrefix is where the daemon serves FileStore content.
const ContentPathPrefix = "/content/"

var contentIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]{1,8})?$`)

// FileStore keeps content in a local directory and serves it over HTTP.
// Intended for development clusters.
type FileStore struct {
	Dir       string
	PublicURL string // Base URL of the daemon, e.g. http://localhost:11280
}

// NewFileStore creates dir (0700) and returns a store rooted there.
func NewFileStore(dir, publicURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	return &FileStore{Dir: dir, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "application/json":
		return ".json"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Put implements ContentStore.
func (s *FileStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString() + extensionFor(contentType)
	if err := os.WriteFile(filepath.Join(s.Dir, id), data, 0600); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return s.PublicURL + ContentPathPrefix + id, nil
}

// ServeHTTP serves GET /content/<id>.
func (s *FileStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, ContentPathPrefix)
	if !contentIDPattern.MatchString(id) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.Dir, id))
}
