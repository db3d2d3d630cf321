// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/ledger"
)

// TransferStatus is the lifecycle of a user-initiated transfer.
type TransferStatus int

const (
	TransferIdle TransferStatus = iota
	TransferBuilt
	TransferAwaitingSignature
	TransferSubmitted
	TransferConfirmed
	TransferFailed
	TransferRejected
)

func (s TransferStatus) String() string {
	switch s {
	case TransferIdle:
		return "idle"
	case TransferBuilt:
		return "built"
	case TransferAwaitingSignature:
		return "awaiting-signature"
	case TransferSubmitted:
		return "submitted"
	case TransferConfirmed:
		return "confirmed"
	case TransferFailed:
		return "failed"
	case TransferRejected:
		return "rejected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transitions happen.
func (s TransferStatus) Terminal() bool {
	return s == TransferConfirmed || s == TransferFailed || s == TransferRejected
}

// PendingTransfer tracks one transfer from build to a terminal status.
type PendingTransfer struct {
	Recipient string
	Mint      *solana.PublicKey // nil for native SOL
	Amount    uint64            // Atomic units
	Decimals  uint8
	Memo      string
	Status    TransferStatus
	Signature string
	Err       error
}

// DisplayAmount renders Amount in display units.
func (p PendingTransfer) DisplayAmount() string {
	return ledger.FormatAmount(p.Amount, p.Decimals)
}
