// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package nft

import "errors"

// Sentinel errors for NFT operations.
var (
	// ErrInvalidMetadata is returned for missing or oversized metadata fields.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrMissingImage is returned when an upload carries no image bytes.
	ErrMissingImage = errors.New("image is required")

	// ErrUnknownRank is returned when a rank has no catalog image.
	ErrUnknownRank = errors.New("unknown rank")
)
