// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package crypto holds the small set of cryptographic primitives shared by
// the wallet link and the custodial daemon: the NaCl box handshake codec,
// passphrase sealing of the server keypair, and memory hygiene helpers.
package crypto

import (
	"crypto/subtle"
	"runtime"
	"sync"
)

// ZeroBytes overwrites b with zeros.
// Uses a constant-time copy so the compiler cannot elide the write.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// SecureBytes wraps secret material (passphrases, private keys) and
// guarantees it is zeroed on Destroy.
type SecureBytes struct {
	data []byte
	lock sync.RWMutex
}

// NewSecureBytes copies b into a new SecureBytes.
// The caller may zero the original afterwards.
func NewSecureBytes(b []byte) *SecureBytes {
	if b == nil {
		return &SecureBytes{}
	}
	data := make([]byte, len(b))
	copy(data, b)
	return &SecureBytes{data: data}
}

// WithBytes gives fn scoped access to the secret under a read lock.
// fn must not retain the slice.
func (s *SecureBytes) WithBytes(fn func([]byte) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return fn(s.data)
}

// Destroy zeroes the secret. Safe to call more than once.
func (s *SecureBytes) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()
	ZeroBytes(s.data)
	s.data = nil
}

// IsEmpty reports whether no secret is held.
func (s *SecureBytes) IsEmpty() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.data) == 0
}
