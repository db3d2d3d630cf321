// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package custody performs server-signed fungible token transfers through
// the Uptention program.
package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/singleflight"

	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
)

// ProvisionTimeout bounds one shared token account creation, including
// its confirmation.
const ProvisionTimeout = 90 * time.Second

// Config identifies the token and program the orchestrator moves funds with.
type Config struct {
	Mint     solana.PublicKey
	Decimals uint8
	Program  txbuild.Program
	Cluster  string // For explorer links
}

// TransferResult describes a confirmed transfer.
type TransferResult struct {
	Signature          string
	ExplorerURL        string
	Amount             uint64 // Atomic units
	SourceAccount      string
	DestinationAccount string
}

// Orchestrator moves the configured token out of the server wallet.
type Orchestrator struct {
	submitter *ledger.Submitter
	signer    solana.PrivateKey
	cfg       Config

	provision singleflight.Group
}

// New creates an Orchestrator signing with signer.
func New(submitter *ledger.Submitter, signer solana.PrivateKey, cfg Config) *Orchestrator {
	return &Orchestrator{submitter: submitter, signer: signer, cfg: cfg}
}

// ServerAddress returns the public key of the server wallet.
func (o *Orchestrator) ServerAddress() solana.PublicKey {
	return o.signer.PublicKey()
}

// EnsureTokenAccount returns the associated token account of owner for
// mint, creating it (paid by the server) when absent. Concurrent calls for
// the same pair share one provisioning attempt, and an account created by
// someone else in the meantime counts as success.
func (o *Orchestrator) EnsureTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, err := txbuild.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	client := o.submitter.Client()

	ch := o.provision.DoChan(ata.String(), func() (any, error) {
		// Shared by every caller for ata, so no single caller's cancellation
		// may end it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ProvisionTimeout)
		defer cancel()

		exists, err := client.AccountExists(ctx, ata)
		if err != nil {
			return nil, fmt.Errorf("check token account %s: %w", ata, err)
		}
		if exists {
			return nil, nil
		}

		inst, _, err := txbuild.CreateAssociatedTokenAccountIdempotent(o.signer.PublicKey(), owner, mint)
		if err != nil {
			return nil, err
		}
		sig, err := o.submitter.Submit(ctx, []solana.Instruction{inst}, o.signer)
		if err != nil {
			if exists, qerr := client.AccountExists(ctx, ata); qerr == nil && exists {
				util.Debug("token account created concurrently", "account", ata.String(), "error", err)
				return nil, nil
			}
			return nil, err
		}
		util.Debug("created token account", "owner", owner.String(), "account", ata.String(), "signature", sig.String())
		return nil, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return solana.PublicKey{}, ctx.Err()
	}
	if res.Shared {
		util.Debug("joined in-flight provisioning", "account", ata.String())
	}
	if err := res.Err; err != nil {
		return solana.PublicKey{}, err
	}
	return ata, nil
}

// Transfer sends amount (display units) of the configured token to
// recipient and waits for confirmation.
func (o *Orchestrator) Transfer(ctx context.Context, recipient, amount string) (*TransferResult, error) {
	to, err := ledger.ParseAddress(recipient)
	if err != nil {
		return nil, err
	}
	units, err := ledger.ParseAmount(amount, o.cfg.Decimals)
	if err != nil {
		return nil, err
	}

	server := o.signer.PublicKey()
	source, err := o.EnsureTokenAccount(ctx, server, o.cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("provision source account: %w", err)
	}
	dest, err := o.EnsureTokenAccount(ctx, to, o.cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("provision recipient account: %w", err)
	}

	inst, err := o.cfg.Program.SendToken(units, txbuild.TransferAccounts{
		Authority:   server,
		Source:      source,
		Destination: dest,
		Mint:        o.cfg.Mint,
	})
	if err != nil {
		return nil, err
	}

	sig, err := o.submitter.Submit(ctx, []solana.Instruction{inst}, o.signer)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		Signature:          sig.String(),
		ExplorerURL:        ledger.ExplorerURL(sig.String(), o.cfg.Cluster),
		Amount:             units,
		SourceAccount:      source.String(),
		DestinationAccount: dest.String(),
	}, nil
}
