// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// ParseAddress parses a wallet address: base58, 32 bytes, and a valid
// ed25519 point. Program-derived addresses are rejected.
func ParseAddress(s string) (solana.PublicKey, error) {
	pk, err := ParseAccount(s)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !IsOnCurve(pk) {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is not on the ed25519 curve", ErrInvalidAddressFormat, s)
	}
	return pk, nil
}

// ParseAccount parses any 32-byte base58 account key (mints, token accounts).
func ParseAccount(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty address", ErrInvalidAddressFormat)
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddressFormat, err)
	}
	return pk, nil
}

// IsOnCurve reports whether pk decodes to a point on the ed25519 curve.
func IsOnCurve(pk solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}
