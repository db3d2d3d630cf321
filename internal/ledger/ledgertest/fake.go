// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/ledger"
)

// AssociatedTokenProgramID is the SPL associated token account program.
var AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID

// Ledger is a fake ledger.Client and ledger.Subscriber.
// Sent transactions are recorded and their idempotent ATA creations applied,
// so AccountExists reflects what a real cluster would show afterwards.
type Ledger struct {
	mu sync.Mutex

	Blockhash solana.Hash
	Accounts  map[solana.PublicKey]bool
	Lamports  map[solana.PublicKey]uint64
	Tokens    map[solana.PublicKey]ledger.TokenAmount
	Decimals  map[solana.PublicKey]uint8

	// Sent holds every transaction passed to SendTransaction.
	Sent []*solana.Transaction

	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// ExecErr, when set, marks every sent transaction as failed on chain.
	ExecErr string
	// OnSend, when set, runs inside SendTransaction with the ledger locked;
	// it may mutate the exported maps directly and return an error to reject.
	OnSend func(tx *solana.Transaction) error
	// Status, when set, overrides the status returned for every signature.
	Status func(sig solana.Signature) (*ledger.SignatureStatus, error)

	// Calls counts RPC method invocations by name.
	Calls map[string]int

	streams map[solana.PublicKey][]chan ledger.AccountUpdate
}

// New returns an empty fake ledger.
func New() *Ledger {
	return &Ledger{
		Blockhash: solana.HashFromBytes([]byte("uptention-test-blockhash-0000000")),
		Accounts:  make(map[solana.PublicKey]bool),
		Lamports:  make(map[solana.PublicKey]uint64),
		Tokens:    make(map[solana.PublicKey]ledger.TokenAmount),
		Decimals:  make(map[solana.PublicKey]uint8),
		Calls:     make(map[string]int),
		streams:   make(map[solana.PublicKey][]chan ledger.AccountUpdate),
	}
}

func (l *Ledger) count(name string) {
	l.Calls[name]++
}

// CallCount returns how many times an RPC method was invoked.
func (l *Ledger) CallCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Calls[name]
}

// TotalCalls returns the number of RPC invocations of any kind.
func (l *Ledger) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.Calls {
		n += c
	}
	return n
}

// SentTransactions returns a snapshot of the sent transactions.
func (l *Ledger) SentTransactions() []*solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*solana.Transaction(nil), l.Sent...)
}

// SetAccount marks an account as allocated.
func (l *Ledger) SetAccount(pk solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Accounts[pk] = true
}

// SetToken allocates a token account with a balance.
func (l *Ledger) SetToken(pk solana.PublicKey, amount ledger.TokenAmount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Accounts[pk] = true
	l.Tokens[pk] = amount
}

// SetLamports sets an account balance.
func (l *Ledger) SetLamports(pk solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Accounts[pk] = true
	l.Lamports[pk] = lamports
}

func (l *Ledger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("LatestBlockhash")
	return l.Blockhash, nil
}

func (l *Ledger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("AccountExists")
	return l.Accounts[account], nil
}

func (l *Ledger) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("Balance")
	return l.Lamports[account], nil
}

func (l *Ledger) TokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (ledger.TokenAmount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("TokenBalance")
	if !l.Accounts[tokenAccount] {
		return ledger.TokenAmount{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, tokenAccount)
	}
	return l.Tokens[tokenAccount], nil
}

func (l *Ledger) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("MintDecimals")
	d, ok := l.Decimals[mint]
	if !ok {
		return 0, fmt.Errorf("%w: mint %s", ledger.ErrAccountNotFound, mint)
	}
	return d, nil
}

func (l *Ledger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("SendTransaction")
	if l.SendErr != nil {
		return solana.Signature{}, l.SendErr
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction is not signed")
	}
	if l.OnSend != nil {
		if err := l.OnSend(tx); err != nil {
			return solana.Signature{}, err
		}
	}
	l.Sent = append(l.Sent, tx)
	if l.ExecErr == "" {
		l.apply(tx)
	}
	return tx.Signatures[0], nil
}

// apply allocates the accounts created by idempotent ATA instructions.
// Must be called with l.mu held.
func (l *Ledger) apply(tx *solana.Transaction) {
	keys := tx.Message.AccountKeys
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			continue
		}
		if !keys[inst.ProgramIDIndex].Equals(AssociatedTokenProgramID) || len(inst.Accounts) < 2 {
			continue
		}
		l.Accounts[keys[inst.Accounts[1]]] = true
	}
}

func (l *Ledger) SignatureStatus(ctx context.Context, sig solana.Signature) (*ledger.SignatureStatus, error) {
	l.mu.Lock()
	statusFn := l.Status
	execErr := l.ExecErr
	l.count("SignatureStatus")
	l.mu.Unlock()

	if statusFn != nil {
		return statusFn(sig)
	}
	return &ledger.SignatureStatus{Slot: 1, Confirmation: ledger.CommitmentConfirmed, Err: execErr}, nil
}

// SubscribeAccount implements ledger.Subscriber. Push notifications with Notify.
func (l *Ledger) SubscribeAccount(ctx context.Context, account solana.PublicKey) (ledger.AccountStream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("SubscribeAccount")
	ch := make(chan ledger.AccountUpdate, 16)
	l.streams[account] = append(l.streams[account], ch)
	return &stream{ledger: l, account: account, ch: ch, done: make(chan struct{})}, nil
}

// Notify delivers an update to every open subscription for account.
func (l *Ledger) Notify(account solana.PublicKey, update ledger.AccountUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.streams[account] {
		ch <- update
	}
}

// Subscriptions returns the number of open subscriptions for account.
func (l *Ledger) Subscriptions(account solana.PublicKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.streams[account])
}

type stream struct {
	ledger  *Ledger
	account solana.PublicKey
	ch      chan ledger.AccountUpdate
	done    chan struct{}
	once    sync.Once
}

func (s *stream) Recv(ctx context.Context) (ledger.AccountUpdate, error) {
	select {
	case u := <-s.ch:
		return u, nil
	case <-s.done:
		return ledger.AccountUpdate{}, errors.New("subscription closed")
	case <-ctx.Done():
		return ledger.AccountUpdate{}, ctx.Err()
	}
}

func (s *stream) Close() {
	s.once.Do(func() {
		close(s.done)
		l := s.ledger
		l.mu.Lock()
		defer l.mu.Unlock()
		chans := l.streams[s.account]
		for i, ch := range chans {
			if ch == s.ch {
				l.streams[s.account] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	})
}

var (
	_ ledger.Client     = (*Ledger)(nil)
	_ ledger.Subscriber = (*Ledger)(nil)
)
