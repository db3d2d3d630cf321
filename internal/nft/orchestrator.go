// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package nft mints rank NFTs to the server wallet and hands them out.
package nft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/storage"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
)

// Config holds the program and naming defaults for minting.
type Config struct {
	Program       txbuild.Program
	Cluster       string
	DefaultSymbol string // DefaultSymbol when empty
}

// MintResult describes a confirmed mint.
type MintResult struct {
	MintAddress       string        `json:"mintAddress"`
	OwnerTokenAccount string        `json:"ownerAta"`
	MetadataURI       string        `json:"metadataUri"`
	ImageURI          string        `json:"imageUri"`
	Metadata          FinalMetadata `json:"metadata"`
	Signature         string        `json:"signature"`
	ExplorerURL       string        `json:"transaction"`
}

// TransferResult describes a confirmed NFT transfer.
type TransferResult struct {
	Signature          string
	ExplorerURL        string
	Mint               string
	SourceAccount      string
	DestinationAccount string
}

// Orchestrator creates NFTs owned by the server wallet and transfers them.
type Orchestrator struct {
	submitter *ledger.Submitter
	signer    solana.PrivateKey
	store     storage.ContentStore
	cfg       Config
}

// New creates an Orchestrator publishing content to store.
func New(submitter *ledger.Submitter, signer solana.PrivateKey, store storage.ContentStore, cfg Config) *Orchestrator {
	if cfg.DefaultSymbol == "" {
		cfg.DefaultSymbol = DefaultSymbol
	}
	return &Orchestrator{submitter: submitter, signer: signer, store: store, cfg: cfg}
}

// CreateFromUpload publishes img, then mints an NFT described by m.
func (o *Orchestrator) CreateFromUpload(ctx context.Context, m Metadata, img Image) (*MintResult, error) {
	if err := o.validate(m); err != nil {
		return nil, err
	}
	if len(img.Data) == 0 {
		return nil, ErrMissingImage
	}
	if img.ContentType == "" {
		img.ContentType = "application/octet-stream"
	}

	util.Logger.Info("uploading NFT image", "file", img.FileName, "type", img.ContentType, "bytes", len(img.Data))
	uri, err := o.store.Put(ctx, img.FileName, img.ContentType, img.Data)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return o.mint(ctx, m, ImageRef{URI: uri, ContentType: img.ContentType})
}

// CreateFromKnownURI mints an NFT whose image is already published.
func (o *Orchestrator) CreateFromKnownURI(ctx context.Context, m Metadata, image ImageRef) (*MintResult, error) {
	if err := o.validate(m); err != nil {
		return nil, err
	}
	if image.URI == "" {
		return nil, fmt.Errorf("%w: image uri is required", ErrInvalidMetadata)
	}
	return o.mint(ctx, m, image)
}

func (o *Orchestrator) validate(m Metadata) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Symbol == "" && len(o.cfg.DefaultSymbol) > MaxSymbolLength {
		return fmt.Errorf("%w: default symbol exceeds %d bytes", ErrInvalidMetadata, MaxSymbolLength)
	}
	return nil
}

func (o *Orchestrator) mint(ctx context.Context, m Metadata, image ImageRef) (*MintResult, error) {
	final := finalize(m, o.cfg.DefaultSymbol, image)
	doc, err := json.Marshal(final)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	metadataURI, err := o.store.Put(ctx, "metadata.json", "application/json", doc)
	if err != nil {
		return nil, fmt.Errorf("upload metadata: %w", err)
	}
	if len(metadataURI) > MaxURILength {
		return nil, fmt.Errorf("%w: metadata uri exceeds %d bytes", ErrInvalidMetadata, MaxURILength)
	}

	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint key: %w", err)
	}
	mint := mintKey.PublicKey()
	server := o.signer.PublicKey()

	metadataPDA, err := txbuild.MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	ownerATA, err := txbuild.AssociatedTokenAddress(server, mint)
	if err != nil {
		return nil, err
	}
	util.Debug("derived NFT accounts", "mint", mint.String(), "metadata", metadataPDA.String(), "owner_ata", ownerATA.String())

	inst, err := o.cfg.Program.CreateNft(final.Name, final.Symbol, metadataURI, txbuild.CreateNftAccounts{
		Authority:    server,
		Mint:         mint,
		Metadata:     metadataPDA,
		TokenAccount: ownerATA,
	})
	if err != nil {
		return nil, err
	}

	sig, err := o.submitter.Submit(ctx, []solana.Instruction{inst}, o.signer, mintKey)
	if err != nil {
		return nil, err
	}
	util.Logger.Info("NFT minted", "mint", mint.String(), "signature", sig.String())

	return &MintResult{
		MintAddress:       mint.String(),
		OwnerTokenAccount: ownerATA.String(),
		MetadataURI:       metadataURI,
		ImageURI:          image.URI,
		Metadata:          final,
		Signature:         sig.String(),
		ExplorerURL:       ledger.ExplorerURL(sig.String(), o.cfg.Cluster),
	}, nil
}

// Transfer moves the NFT mint from the server wallet to recipient. The
// recipient's token account is created idempotently in the same
// transaction.
func (o *Orchestrator) Transfer(ctx context.Context, mint, recipient string) (*TransferResult, error) {
	to, err := ledger.ParseAddress(recipient)
	if err != nil {
		return nil, err
	}
	mintKey, err := ledger.ParseAccount(mint)
	if err != nil {
		return nil, err
	}

	server := o.signer.PublicKey()
	source, err := txbuild.AssociatedTokenAddress(server, mintKey)
	if err != nil {
		return nil, err
	}
	create, dest, err := txbuild.CreateAssociatedTokenAccountIdempotent(server, to, mintKey)
	if err != nil {
		return nil, err
	}
	send, err := o.cfg.Program.SendNft(txbuild.TransferAccounts{
		Authority:   server,
		Source:      source,
		Destination: dest,
		Mint:        mintKey,
	})
	if err != nil {
		return nil, err
	}

	sig, err := o.submitter.Submit(ctx, []solana.Instruction{create, send}, o.signer)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		Signature:          sig.String(),
		ExplorerURL:        ledger.ExplorerURL(sig.String(), o.cfg.Cluster),
		Mint:               mintKey.String(),
		SourceAccount:      source.String(),
		DestinationAccount: dest.String(),
	}, nil
}
