// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package version provides build version information for Uptention binaries.
// Values are injected at build time via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Example: go build -ldflags "-X github.com/uptention/uptention/internal/version.Version=1.0.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown" // RFC3339
)

// Info is the version block reported by /health.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildTime string `json:"built"`
}

// Current returns the build information.
func Current() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// String returns a formatted version string suitable for -version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s)",
		Version, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}
