// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient implements Client over the Solana JSON-RPC API.
type RPCClient struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClient creates a client for endpoint reading at "confirmed".
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		rpc:        rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
	}
}

// LatestBlockhash implements Client.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: empty response")
	}
	return res.Value.Blockhash, nil
}

// AccountExists implements Client.
func (c *RPCClient) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getAccountInfo %s: %w", account, err)
	}
	return true, nil
}

// Balance implements Client.
func (c *RPCClient) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getBalance %s: %w", account, err)
	}
	return res.Value, nil
}

// TokenBalance implements Client.
func (c *RPCClient) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (TokenAmount, error) {
	exists, err := c.AccountExists(ctx, tokenAccount)
	if err != nil {
		return TokenAmount{}, err
	}
	if !exists {
		return TokenAmount{}, fmt.Errorf("%w: %s", ErrAccountNotFound, tokenAccount)
	}

	res, err := c.rpc.GetTokenAccountBalance(ctx, tokenAccount, c.commitment)
	if err != nil {
		return TokenAmount{}, fmt.Errorf("getTokenAccountBalance %s: %w", tokenAccount, err)
	}
	if res == nil || res.Value == nil {
		return TokenAmount{}, fmt.Errorf("getTokenAccountBalance %s: empty response", tokenAccount)
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return TokenAmount{}, fmt.Errorf("getTokenAccountBalance %s: bad amount %q", tokenAccount, res.Value.Amount)
	}
	return TokenAmount{Amount: amount, Decimals: res.Value.Decimals}, nil
}

// MintDecimals implements Client.
func (c *RPCClient) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	res, err := c.rpc.GetTokenSupply(ctx, mint, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getTokenSupply %s: %w", mint, err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("getTokenSupply %s: empty response", mint)
	}
	return res.Value.Decimals, nil
}

// SendTransaction implements Client.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus implements Client.
func (c *RPCClient) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}
	st := res.Value[0]
	status := &SignatureStatus{
		Slot:         st.Slot,
		Confirmation: Commitment(st.ConfirmationStatus),
	}
	if st.Err != nil {
		status.Err = fmt.Sprintf("%v", st.Err)
	}
	return status, nil
}

// Compile-time interface check
var _ Client = (*RPCClient)(nil)
