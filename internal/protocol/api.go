// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package protocol

import "encoding/json"

// REST endpoint paths served by uptentiond
const (
	PathTokenTransfer     = "/tokens/transfer"
	PathNFTCreate         = "/nfts/create"
	PathNFTCreateWithURI  = "/nfts/create-with-uri"
	PathNFTTransfer       = "/nfts/transfer"
	PathHealth            = "/health"
	PathInfo              = "/info"
	PathMetrics           = "/metrics"
	FormFieldNFTImage     = "nftImage"
	FormFieldNFTMetadata  = "metadata"
	DefaultMultipartLimit = 1 << 20 // Non-file form fields
)

// TokenTransferRequest is the body of POST /tokens/transfer.
// Amount may be a JSON number or a decimal string.
type TokenTransferRequest struct {
	RecipientAddress string          `json:"recipientAddress"`
	Amount           json.RawMessage `json:"amount"`
}

// NFTCreateWithURIRequest is the body of POST /nfts/create-with-uri.
type NFTCreateWithURIRequest struct {
	Rank        string            `json:"rank"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Attributes  []json.RawMessage `json:"attributes,omitempty"`
	Symbol      string            `json:"symbol,omitempty"`
}

// NFTTransferRequest is the body of POST /nfts/transfer.
type NFTTransferRequest struct {
	RecipientAddress string `json:"recipientAddress"`
	NFTMintAddress   string `json:"nftMintAddress"`
}

// TransferResponse answers a confirmed token or NFT transfer.
type TransferResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Transaction string `json:"transaction"` // Explorer URL
	Signature   string `json:"signature"`
}

// MintResponse answers a confirmed NFT mint.
type MintResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	MintAddress string `json:"mintAddress"`
	Transaction string `json:"transaction"`
	Signature   string `json:"signature"`
	Details     any    `json:"details,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Signature string `json:"signature,omitempty"` // Set when the outcome of a submitted transaction is unknown
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version any    `json:"version"`
}

// InfoResponse is returned by GET /info.
type InfoResponse struct {
	ServerAddress string   `json:"serverAddress"`
	TokenMint     string   `json:"tokenMint"`
	TokenDecimals uint8    `json:"tokenDecimals"`
	ProgramID     string   `json:"programId"`
	Cluster       string   `json:"cluster"`
	Ranks         []string `json:"ranks"`
}
