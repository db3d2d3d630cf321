// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Submitter builds, signs, sends and confirms server-signed transactions.
type Submitter struct {
	client     Client
	policy     RetryPolicy
	commitment Commitment
}

// NewSubmitter creates a Submitter that confirms at "confirmed".
func NewSubmitter(client Client, policy RetryPolicy) *Submitter {
	return &Submitter{client: client, policy: policy, commitment: CommitmentConfirmed}
}

// Client returns the underlying RPC client.
func (s *Submitter) Client() Client {
	return s.client
}

// Submit sends instructions as one atomic transaction paid by payer and
// signed by payer plus extraSigners, then waits for confirmation.
// All instructions succeed or none do.
func (s *Submitter) Submit(ctx context.Context, instructions []solana.Instruction, payer solana.PrivateKey, extraSigners ...solana.PrivateKey) (solana.Signature, error) {
	if len(instructions) == 0 {
		return solana.Signature{}, errors.New("no instructions to submit")
	}

	blockhash, err := s.client.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, &TxError{Reason: err.Error(), Err: ErrLedgerSubmission}
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	signers := append([]solana.PrivateKey{payer}, extraSigners...)
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, &TxError{Reason: err.Error(), Err: ErrLedgerSubmission}
	}

	if err := WaitForConfirmation(ctx, s.client, sig, s.commitment, s.policy); err != nil {
		return sig, err
	}
	return sig, nil
}
