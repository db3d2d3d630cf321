// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package txbuild assembles Solana instructions and unsigned transactions:
// native and SPL token transfers for the wallet, and the Anchor program
// calls used by the custodial backend.
package txbuild

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Well-known program IDs
var (
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	RentSysvarID             = solana.SysVarRentPubkey
	MemoProgramID            = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	TokenMetadataProgramID   = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// createIdempotent is the associated token program's CreateIdempotent
// instruction index. It succeeds when the account already exists.
const createIdempotent byte = 1

// AssociatedTokenAddress derives the token account of owner for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account for %s: %w", owner, err)
	}
	return ata, nil
}

// CreateAssociatedTokenAccountIdempotent returns an instruction creating the
// associated token account of owner for mint, paid by payer, plus the derived
// address. Executing it against an existing account is a no-op.
func CreateAssociatedTokenAccountIdempotent(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(SystemProgramID, false, false),
		solana.NewAccountMeta(TokenProgramID, false, false),
	}
	return solana.NewInstruction(AssociatedTokenProgramID, accounts, []byte{createIdempotent}), ata, nil
}

// Memo returns an SPL memo instruction signed by signer.
func Memo(text string, signer solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{solana.NewAccountMeta(signer, false, true)}
	return solana.NewInstruction(MemoProgramID, accounts, []byte(text))
}

// MetadataAddress derives the token metadata account of mint.
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), TokenMetadataProgramID[:], mint[:]},
		TokenMetadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive metadata address for %s: %w", mint, err)
	}
	return addr, nil
}
