// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/ledger/ledgertest"
	"github.com/uptention/uptention/internal/txbuild"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return k.PublicKey()
}

func TestWatcher_Refresh(t *testing.T) {
	fake := ledgertest.New()
	owner, mint := newKey(t), newKey(t)
	fake.SetLamports(owner, 2_500_000_000)

	w := NewWatcher(fake, nil)

	b, err := w.Refresh(context.Background(), owner, &mint)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if b.Lamports != 2_500_000_000 {
		t.Fatalf("lamports = %d", b.Lamports)
	}
	if b.Token != nil || b.TokenDisplay() != "0" {
		t.Fatalf("missing token account should read as zero, got %+v", b.Token)
	}

	ata, _ := txbuild.AssociatedTokenAddress(owner, mint)
	fake.SetToken(ata, ledger.TokenAmount{Amount: 150000000, Decimals: 8})
	b, err = w.Refresh(context.Background(), owner, &mint)
	if err != nil {
		t.Fatal(err)
	}
	if b.TokenDisplay() != "1.50000000" {
		t.Fatalf("token = %s", b.TokenDisplay())
	}

	// SOL only
	b, _ = w.Refresh(context.Background(), owner, nil)
	if b.Token != nil || !b.TokenAccount.IsZero() {
		t.Fatal("token fields set without a mint")
	}
}

func TestWatcher_AwaitChange(t *testing.T) {
	fake := ledgertest.New()
	owner := newKey(t)
	fake.SetLamports(owner, 100)
	w := NewWatcher(fake, nil)
	policy := ledger.RetryPolicy{MaxAttempts: 50, Delay: time.Millisecond}

	before, _ := w.Refresh(context.Background(), owner, nil)
	go func() {
		time.Sleep(5 * time.Millisecond)
		fake.SetLamports(owner, 40)
	}()

	after, err := w.AwaitChange(context.Background(), owner, nil, before, policy)
	if err != nil {
		t.Fatalf("AwaitChange: %v", err)
	}
	if after.Lamports != 40 {
		t.Fatalf("lamports = %d, want 40", after.Lamports)
	}
}

func TestWatcher_AwaitChangeExhausted(t *testing.T) {
	fake := ledgertest.New()
	owner := newKey(t)
	fake.SetLamports(owner, 100)
	w := NewWatcher(fake, nil)

	before, _ := w.Refresh(context.Background(), owner, nil)
	latest, err := w.AwaitChange(context.Background(), owner, nil, before, ledger.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond})
	if !errors.Is(err, ledger.ErrRetriesExhausted) {
		t.Fatalf("error = %v, want ErrRetriesExhausted", err)
	}
	if latest.Lamports != 100 {
		t.Fatalf("latest = %d", latest.Lamports)
	}
}

func TestWatcher_SubscribeUnsubscribe(t *testing.T) {
	fake := ledgertest.New()
	owner := newKey(t)
	w := NewWatcher(fake, fake)

	updates := make(chan Update, 4)
	sub, err := w.Subscribe(context.Background(), owner, func(u Update) { updates <- u })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	fake.Notify(owner, ledger.AccountUpdate{Slot: 9, Lamports: 77})
	select {
	case u := <-updates:
		if u.Lamports != 77 || u.Slot != 9 || !u.Account.Equals(owner) {
			t.Fatalf("update = %+v", u)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no update delivered")
	}

	w.Unsubscribe(sub)
	w.Unsubscribe(sub)
	if fake.Subscriptions(owner) != 0 {
		t.Fatal("subscription leaked after Unsubscribe")
	}
	if w.Open() != 0 {
		t.Fatalf("open = %d", w.Open())
	}
	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription goroutine still running")
	}
	if sub.Err() != nil {
		t.Fatalf("Err after unsubscribe = %v", sub.Err())
	}
}

func TestWatcher_CloseReleasesAll(t *testing.T) {
	fake := ledgertest.New()
	a, b := newKey(t), newKey(t)
	w := NewWatcher(fake, fake)
	for _, k := range []solana.PublicKey{a, b} {
		if _, err := w.Subscribe(context.Background(), k, func(Update) {}); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()
	if fake.Subscriptions(a)+fake.Subscriptions(b) != 0 {
		t.Fatal("subscriptions leaked after Close")
	}
}

func TestWatcher_SubscribeWithoutEndpoint(t *testing.T) {
	w := NewWatcher(ledgertest.New(), nil)
	if _, err := w.Subscribe(context.Background(), newKey(t), func(Update) {}); err == nil {
		t.Fatal("expected error without subscriber")
	}
}
