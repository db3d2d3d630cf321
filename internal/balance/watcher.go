// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package balance tracks wallet balances: push notifications from account
// subscriptions and on-demand pulls after connect or a confirmed transfer.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
)

// Update is one account-change notification.
type Update struct {
	Account  solana.PublicKey
	Slot     uint64
	Lamports uint64
}

// Balances is a pulled snapshot for one owner.
type Balances struct {
	Owner        solana.PublicKey
	Lamports     uint64
	TokenAccount solana.PublicKey    // Zero when no mint was requested
	Token        *ledger.TokenAmount // nil when the token account does not exist
}

// Equal reports whether both snapshots hold the same amounts.
func (b Balances) Equal(o Balances) bool {
	if b.Lamports != o.Lamports {
		return false
	}
	if (b.Token == nil) != (o.Token == nil) {
		return false
	}
	return b.Token == nil || b.Token.Amount == o.Token.Amount
}

// TokenDisplay renders the token balance, "0" when the account is missing.
func (b Balances) TokenDisplay() string {
	if b.Token == nil {
		return "0"
	}
	return ledger.FormatAmount(b.Token.Amount, b.Token.Decimals)
}

// Subscription is an open account subscription.
type Subscription struct {
	Account solana.PublicKey

	stream ledger.AccountStream
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the subscription stops delivering updates.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the stream failure after Done, nil if unsubscribed.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// Watcher owns the account subscriptions of one session.
type Watcher struct {
	client     ledger.Client
	subscriber ledger.Subscriber

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewWatcher creates a Watcher. subscriber may be nil for pull-only use.
func NewWatcher(client ledger.Client, subscriber ledger.Subscriber) *Watcher {
	return &Watcher{
		client:     client,
		subscriber: subscriber,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Subscribe calls fn for every change to account until Unsubscribe.
// fn runs on the subscription's own goroutine.
func (w *Watcher) Subscribe(ctx context.Context, account solana.PublicKey, fn func(Update)) (*Subscription, error) {
	if w.subscriber == nil {
		return nil, errors.New("no subscription endpoint configured")
	}
	stream, err := w.subscriber.SubscribeAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{Account: account, stream: stream, cancel: cancel, done: make(chan struct{})}

	w.mu.Lock()
	w.subs[sub] = struct{}{}
	w.mu.Unlock()

	go func() {
		defer close(sub.done)
		for {
			u, err := stream.Recv(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					sub.err = err
					util.Debug("account subscription ended", "account", account.String(), "error", err)
				}
				return
			}
			fn(Update{Account: account, Slot: u.Slot, Lamports: u.Lamports})
		}
	}()
	return sub, nil
}

// Unsubscribe cancels sub and waits for its goroutine. Safe to call twice.
func (w *Watcher) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	w.mu.Lock()
	_, ok := w.subs[sub]
	delete(w.subs, sub)
	w.mu.Unlock()
	if !ok {
		return
	}
	sub.cancel()
	sub.stream.Close()
	<-sub.done
}

// Close cancels every open subscription.
func (w *Watcher) Close() {
	w.mu.Lock()
	subs := make([]*Subscription, 0, len(w.subs))
	for s := range w.subs {
		subs = append(subs, s)
	}
	w.mu.Unlock()
	for _, s := range subs {
		w.Unsubscribe(s)
	}
}

// Open returns the number of open subscriptions.
func (w *Watcher) Open() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// Refresh pulls the SOL balance of owner and, when mint is set, the balance
// of owner's associated token account.
func (w *Watcher) Refresh(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey) (Balances, error) {
	b := Balances{Owner: owner}
	lamports, err := w.client.Balance(ctx, owner)
	if err != nil {
		return b, fmt.Errorf("fetch SOL balance: %w", err)
	}
	b.Lamports = lamports

	if mint == nil {
		return b, nil
	}
	ata, err := txbuild.AssociatedTokenAddress(owner, *mint)
	if err != nil {
		return b, err
	}
	b.TokenAccount = ata
	amount, err := w.client.TokenBalance(ctx, ata)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return b, nil
	}
	if err != nil {
		return b, fmt.Errorf("fetch token balance: %w", err)
	}
	b.Token = &amount
	return b, nil
}

// AwaitChange re-polls until the balances differ from previous. When the
// policy runs out it returns the latest snapshot with ledger.ErrRetriesExhausted.
func (w *Watcher) AwaitChange(ctx context.Context, owner solana.PublicKey, mint *solana.PublicKey, previous Balances, policy ledger.RetryPolicy) (Balances, error) {
	var latest Balances
	err := policy.Do(ctx, func(attempt int) (bool, error) {
		b, err := w.Refresh(ctx, owner, mint)
		if err != nil {
			util.Debug("balance refresh failed", "owner", owner.String(), "attempt", attempt, "error", err)
			return false, nil
		}
		latest = b
		return !b.Equal(previous), nil
	})
	return latest, err
}
