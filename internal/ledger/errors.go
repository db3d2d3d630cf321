// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for ledger operations.
// Use errors.Is() to check for these.
var (
	// ErrInvalidAddressFormat is returned when an address is not base58, not
	// 32 bytes, or (for wallet addresses) not on the ed25519 curve.
	ErrInvalidAddressFormat = errors.New("invalid address format")

	// ErrInvalidAmount is returned for empty, malformed, negative or zero amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrLedgerSubmission is returned when the RPC node rejects a transaction
	// or the transaction executes with an error.
	ErrLedgerSubmission = errors.New("ledger submission failed")

	// ErrTransactionTimeout is returned when a submitted transaction was not
	// observed at the target commitment in time. The outcome is unknown: callers
	// must re-query the signature instead of resubmitting.
	ErrTransactionTimeout = errors.New("transaction confirmation timed out")

	// ErrAccountNotFound is returned when a queried account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// TxError carries the signature (when one was assigned) of a failed or
// unconfirmed transaction together with the sentinel that classifies it.
type TxError struct {
	Signature string // Base58 signature, empty if submission never got one
	Reason    string
	Err       error // ErrLedgerSubmission or ErrTransactionTimeout
}

func (e *TxError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("%v (signature %s): %s", e.Err, e.Signature, e.Reason)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *TxError) Unwrap() error {
	return e.Err
}
