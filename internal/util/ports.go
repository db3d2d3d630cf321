// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package util

// Default port constants
const (
	// DefaultRESTPort is the default HTTP REST API port for uptentiond
	DefaultRESTPort = 11280
)
