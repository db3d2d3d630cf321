// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package security applies process-level protections for key material.
package security

import (
	"fmt"
	"os"
	"syscall"
)

// Protection reports which process protections are in effect.
type Protection struct {
	CoreDumpsDisabled bool
	MemoryLocked      bool
}

// Harden disables core dumps and locks memory. Failures are reported in
// the result, not returned; set UPTENTION_NO_MLOCK to skip locking.
func Harden() Protection {
	var p Protection
	p.CoreDumpsDisabled = DisableCoreDumps() == nil
	if os.Getenv("UPTENTION_NO_MLOCK") == "" {
		p.MemoryLocked = LockMemory() == nil
	}
	return p
}

// LockMemory locks current and future pages so the server keypair is
// never written to swap.
func LockMemory() error {
	if err := syscall.Mlockall(syscall.MCL_CURRENT | syscall.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall failed: %w (grant it with: sudo setcap cap_ipc_lock+ep %s)", err, os.Args[0])
	}
	return nil
}

// DisableCoreDumps sets RLIMIT_CORE to zero.
func DisableCoreDumps() error {
	if err := syscall.Setrlimit(syscall.RLIMIT_CORE, &syscall.Rlimit{}); err != nil {
		return fmt.Errorf("failed to disable core dumps: %w", err)
	}
	return nil
}
