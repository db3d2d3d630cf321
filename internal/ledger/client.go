// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package ledger is the boundary to the Solana network: the RPC and
// WebSocket adapters, address and amount parsing, transaction submission
// and bounded confirmation.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Commitment is a Solana confirmation level.
type Commitment string

// Commitment levels, in increasing order of finality.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// AtLeast reports whether c is as final as target.
func (c Commitment) AtLeast(target Commitment) bool {
	return c.rank() > 0 && c.rank() >= target.rank()
}

// TokenAmount is an SPL token balance in atomic units.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// SignatureStatus is the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Slot         uint64
	Confirmation Commitment
	Err          string // Non-empty when the transaction executed and failed
}

// Client is the subset of the Solana JSON-RPC API the service depends on.
type Client interface {
	// LatestBlockhash returns a recent blockhash for new transactions.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// AccountExists reports whether an account is allocated on chain.
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)

	// Balance returns the lamport balance of an account.
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// TokenBalance returns the balance of an SPL token account.
	// Returns ErrAccountNotFound if the token account does not exist.
	TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (TokenAmount, error)

	// MintDecimals returns the decimals configured on a mint.
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)

	// SendTransaction submits a fully signed transaction with preflight checks.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// SignatureStatus returns the status of a signature, or nil if the
	// node has not seen it yet.
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
}

// AccountUpdate is one account-change notification.
type AccountUpdate struct {
	Slot     uint64
	Lamports uint64
}

// AccountStream delivers notifications for one account subscription.
type AccountStream interface {
	// Recv blocks until the next notification, ctx cancellation or stream failure.
	Recv(ctx context.Context) (AccountUpdate, error)

	// Close cancels the subscription.
	Close()
}

// Subscriber opens push subscriptions to account changes.
type Subscriber interface {
	SubscribeAccount(ctx context.Context, account solana.PublicKey) (AccountStream, error)
}
