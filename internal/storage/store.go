// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package storage publishes NFT images and metadata documents to
// content-addressed storage and returns their public URIs.
package storage

import (
	"context"
	"errors"
)

// ErrUploadFailed is returned when the content store rejects or cannot
// be reached for an upload.
var ErrUploadFailed = errors.New("content upload failed")

// ContentStore stores immutable blobs.
type ContentStore interface {
	// Put stores data and returns a URI from which it can be fetched.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}
