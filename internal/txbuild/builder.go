// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package txbuild

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/mr-tron/base58"

	"github.com/uptention/uptention/internal/ledger"
)

// Unsigned is a fee-payer-designated transaction awaiting wallet signature.
type Unsigned struct {
	Tx      *solana.Transaction
	Message []byte // Serialized message, the bytes the wallet signs

	// Informational fields for display
	Amount        uint64
	Decimals      uint8
	CreatesTarget bool // Recipient token account is provisioned by this transaction
}

// Serialize returns the wire transaction with zeroed signature slots.
func (u *Unsigned) Serialize() ([]byte, error) {
	tx := *u.Tx
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	data, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return data, nil
}

// Base58 returns Serialize() in the wallet's payload encoding.
func (u *Unsigned) Base58() (string, error) {
	data, err := u.Serialize()
	if err != nil {
		return "", err
	}
	return base58.Encode(data), nil
}

// Builder assembles unsigned transfers against live chain state.
type Builder struct {
	client ledger.Client
}

// NewBuilder creates a Builder reading blockhashes and accounts from client.
func NewBuilder(client ledger.Client) *Builder {
	return &Builder{client: client}
}

// NativeTransfer builds a SOL transfer of amount (display units) from from to to.
func (b *Builder) NativeTransfer(ctx context.Context, from, to, amount string) (*Unsigned, error) {
	fromKey, err := ledger.ParseAccount(from)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	toKey, err := ledger.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	lamports, err := ledger.ParseAmount(amount, ledger.LamportDecimals)
	if err != nil {
		return nil, err
	}

	inst := system.NewTransferInstruction(lamports, fromKey, toKey).Build()
	u, err := b.finish(ctx, fromKey, []solana.Instruction{inst})
	if err != nil {
		return nil, err
	}
	u.Amount = lamports
	u.Decimals = ledger.LamportDecimals
	return u, nil
}

// TokenTransferParams describes an SPL token transfer.
type TokenTransferParams struct {
	From     string // Owner and fee payer
	To       string // Recipient wallet (not token account)
	Mint     string
	Amount   string // Display units
	Decimals *uint8 // Read from the mint when nil
	Memo     string // Optional
}

// TokenTransfer builds a TransferChecked between the associated token
// accounts of From and To. When the recipient account is missing, an
// idempotent create instruction is prepended so provisioning and transfer
// succeed or fail together.
func (b *Builder) TokenTransfer(ctx context.Context, p TokenTransferParams) (*Unsigned, error) {
	fromKey, err := ledger.ParseAccount(p.From)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	toKey, err := ledger.ParseAddress(p.To)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	mint, err := ledger.ParseAccount(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	var decimals uint8
	if p.Decimals != nil {
		decimals = *p.Decimals
	} else {
		decimals, err = b.client.MintDecimals(ctx, mint)
		if err != nil {
			return nil, fmt.Errorf("read mint decimals: %w", err)
		}
	}
	units, err := ledger.ParseAmount(p.Amount, decimals)
	if err != nil {
		return nil, err
	}

	source, err := AssociatedTokenAddress(fromKey, mint)
	if err != nil {
		return nil, err
	}
	dest, err := AssociatedTokenAddress(toKey, mint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	exists, err := b.client.AccountExists(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("check recipient token account: %w", err)
	}
	if !exists {
		create, _, err := CreateAssociatedTokenAccountIdempotent(fromKey, toKey, mint)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, create)
	}

	instructions = append(instructions,
		token.NewTransferCheckedInstruction(units, decimals, source, mint, dest, fromKey, []solana.PublicKey{}).Build())
	if p.Memo != "" {
		instructions = append(instructions, Memo(p.Memo, fromKey))
	}

	u, err := b.finish(ctx, fromKey, instructions)
	if err != nil {
		return nil, err
	}
	u.Amount = units
	u.Decimals = decimals
	u.CreatesTarget = !exists
	return u, nil
}

func (b *Builder) finish(ctx context.Context, payer solana.PublicKey, instructions []solana.Instruction) (*Unsigned, error) {
	blockhash, err := b.client.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	return &Unsigned{Tx: tx, Message: msg}, nil
}
