// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package txbuild

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Discriminator returns the 8-byte Anchor selector of a global instruction.
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// anchorData encodes the selector followed by the borsh-encoded args.
func anchorData(name string, args ...any) ([]byte, error) {
	var buf bytes.Buffer
	d := Discriminator(name)
	buf.Write(d[:])
	enc := bin.NewBorshEncoder(&buf)
	for _, arg := range args {
		if err := enc.Encode(arg); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

// Program is the Uptention Anchor program.
type Program struct {
	ID solana.PublicKey
}

// TransferAccounts are the accounts shared by send_token and send_nft.
type TransferAccounts struct {
	Authority   solana.PublicKey // Owner of Source, signs
	Source      solana.PublicKey // Source token account
	Destination solana.PublicKey // Destination token account, must exist
	Mint        solana.PublicKey
}

func (a TransferAccounts) metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Authority, true, true),
		solana.NewAccountMeta(a.Source, true, false),
		solana.NewAccountMeta(a.Destination, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(TokenProgramID, false, false),
	}
}

// SendToken moves amount atomic units of a fungible token.
func (p Program) SendToken(amount uint64, accounts TransferAccounts) (solana.Instruction, error) {
	data, err := anchorData("send_token", amount)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, accounts.metas(), data), nil
}

// SendNft moves the single unit of an NFT.
func (p Program) SendNft(accounts TransferAccounts) (solana.Instruction, error) {
	data, err := anchorData("send_nft")
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, accounts.metas(), data), nil
}

// CreateNftAccounts are the accounts of create_nft.
type CreateNftAccounts struct {
	Authority    solana.PublicKey // Server key, pays and signs
	Mint         solana.PublicKey // Fresh mint keypair, signs
	Metadata     solana.PublicKey // MetadataAddress(Mint)
	TokenAccount solana.PublicKey // Authority's associated account for Mint
}

// CreateNft mints one NFT with the given metadata to the authority.
func (p Program) CreateNft(name, symbol, uri string, accounts CreateNftAccounts) (solana.Instruction, error) {
	data, err := anchorData("create_nft", name, symbol, uri)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Authority, true, true),
		solana.NewAccountMeta(accounts.Mint, true, true),
		solana.NewAccountMeta(accounts.Metadata, true, false),
		solana.NewAccountMeta(accounts.TokenAccount, true, false),
		solana.NewAccountMeta(SystemProgramID, false, false),
		solana.NewAccountMeta(TokenProgramID, false, false),
		solana.NewAccountMeta(AssociatedTokenProgramID, false, false),
		solana.NewAccountMeta(RentSysvarID, false, false),
		solana.NewAccountMeta(TokenMetadataProgramID, false, false),
	}
	return solana.NewInstruction(p.ID, metas, data), nil
}
