// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/balance"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/ledger/ledgertest"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
	"github.com/uptention/uptention/internal/walletlink"
)

type recordingOpener struct {
	mu    sync.Mutex
	links []string
}

func (o *recordingOpener) Open(ctx context.Context, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.links = append(o.links, link)
	return nil
}

func (o *recordingOpener) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.links...)
}

// syncBuffer is written from the dispatcher goroutine and read by tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T, config util.Config) (*Shell, *recordingOpener, *syncBuffer) {
	t.Helper()
	shell, opener, out, _ := newTestShellLedger(t, config)
	return shell, opener, out
}

func newTestShellLedger(t *testing.T, config util.Config) (*Shell, *recordingOpener, *syncBuffer, *ledgertest.Ledger) {
	t.Helper()
	fake := ledgertest.New()
	out := &syncBuffer{}
	watcher := balance.NewWatcher(fake, fake)
	shell, err := NewShell(nil, watcher, config, ledger.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, out)
	if err != nil {
		t.Fatalf("NewShell: %v", err)
	}
	opener := &recordingOpener{}
	ctrl, err := walletlink.NewController(walletlink.Options{
		Gateway: walletlink.Gateway{
			Platform:     walletlink.PlatformAndroid,
			Cluster:      config.Cluster,
			AppURL:       config.AppURL,
			RedirectBase: config.RedirectLink,
		},
		Opener:     opener,
		Builder:    txbuild.NewBuilder(fake),
		TokenMint:  config.TokenMint,
		OnTransfer: shell.OnTransfer,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	shell.ctrl = ctrl
	t.Cleanup(func() {
		ctrl.Close()
		shell.Close()
		watcher.Close()
	})
	return shell, opener, out, fake
}

func TestShellConnectOpensWalletLink(t *testing.T) {
	shell, opener, out := newTestShell(t, util.DefaultConfig())

	if err := shell.Execute("connect", nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	links := opener.all()
	if len(links) != 1 || !strings.HasPrefix(links[0], "https://phantom.app/ul/v1/connect?") {
		t.Fatalf("links = %v", links)
	}
	if !strings.Contains(out.String(), "callback <url>") {
		t.Fatalf("output = %q, want callback hint", out.String())
	}

	out2 := &syncBuffer{}
	shell.SetOutput(out2)
	if err := shell.Execute("status", nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out2.String(), "State:") || !strings.Contains(out2.String(), "connecting") {
		t.Fatalf("status output = %q", out2.String())
	}
}

func TestShellRequiresConnection(t *testing.T) {
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	config := util.DefaultConfig()
	config.TokenMint = mint.PublicKey().String()
	shell, opener, _ := newTestShell(t, config)
	to := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name string
		args []string
	}{
		{"send", []string{to, "0.5"}},
		{"sendtoken", []string{to, "10", "thanks"}},
		{"balance", nil},
		{"watch", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := shell.Execute(tt.name, tt.args)
			if !errors.Is(err, walletlink.ErrNotConnected) {
				t.Fatalf("error = %v, want ErrNotConnected", err)
			}
		})
	}
	if n := len(opener.all()); n != 0 {
		t.Fatalf("opened %d links while disconnected", n)
	}
}

func TestShellUsageErrors(t *testing.T) {
	shell, _, _ := newTestShell(t, util.DefaultConfig())

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"callback", nil, "usage: callback"},
		{"send", []string{"only-one"}, "usage: send"},
		{"sendtoken", []string{"x"}, "usage: sendtoken"},
		{"sendtoken", []string{"x", "1"}, "token_mint is not configured"},
		{"frobnicate", nil, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.wantErr, func(t *testing.T) {
			err := shell.Execute(tt.name, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestShellHelpAndQuit(t *testing.T) {
	shell, _, out := newTestShell(t, util.DefaultConfig())

	if err := shell.Execute("help", nil); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, c := range commands {
		if !strings.Contains(out.String(), c.usage) {
			t.Errorf("help is missing %q", c.usage)
		}
	}
	for _, name := range []string{"quit", "exit"} {
		if err := shell.Execute(name, nil); !errors.Is(err, errExit) {
			t.Fatalf("%s: error = %v, want errExit", name, err)
		}
	}
	if !shell.run("quit") {
		t.Fatal("run(quit) should stop the loop")
	}
	if shell.run("   ") {
		t.Fatal("blank line should not stop the loop")
	}
}

func TestNewShellRejectsBadMint(t *testing.T) {
	config := util.DefaultConfig()
	config.TokenMint = "not-a-mint"
	if _, err := NewShell(nil, nil, config, ledger.RetryPolicy{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected token_mint error")
	}
}

func TestShellOnTransfer(t *testing.T) {
	shell, _, out := newTestShell(t, util.DefaultConfig())

	shell.OnTransfer(walletlink.PendingTransfer{Status: walletlink.TransferFailed, Err: errors.New("insufficient funds")})
	got := out.String()
	if !strings.Contains(got, "failed") || !strings.Contains(got, "insufficient funds") {
		t.Fatalf("output = %q", got)
	}
}

func TestCommandOpener(t *testing.T) {
	var out bytes.Buffer
	o := &commandOpener{out: &out}
	if err := o.Open(context.Background(), "https://phantom.app/ul/v1/connect?x=1"); err != nil {
		t.Fatalf("print-only open: %v", err)
	}
	if !strings.Contains(out.String(), "https://phantom.app/ul/v1/connect?x=1") {
		t.Fatalf("output = %q", out.String())
	}

	o = &commandOpener{argv: []string{"/nonexistent/wallet-opener"}, out: &bytes.Buffer{}}
	err := o.Open(context.Background(), "https://phantom.app/ul/v1/connect")
	if !errors.Is(err, walletlink.ErrWalletUnavailable) {
		t.Fatalf("error = %v, want ErrWalletUnavailable", err)
	}
}

func TestWatchModel(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	m := watchModel{owner: owner, cluster: "devnet"}

	if !strings.Contains(m.View(), "Loading") {
		t.Fatalf("initial view = %q", m.View())
	}
	next, cmd := m.Update(accountMsg(balance.Update{Account: owner, Slot: 7, Lamports: 1}))
	m = next.(watchModel)
	if cmd == nil || m.updates != 1 || m.slot != 7 {
		t.Fatalf("after update: updates=%d slot=%d cmd=%v", m.updates, m.slot, cmd)
	}
	next, _ = m.Update(snapshotMsg{balances: balance.Balances{Owner: owner, Lamports: 1_500_000_000}})
	m = next.(watchModel)
	if !strings.Contains(m.View(), "1.5") {
		t.Fatalf("view = %q, want 1.5 SOL", m.View())
	}
	next, _ = m.Update(snapshotMsg{err: errors.New("rpc down")})
	m = next.(watchModel)
	if !strings.Contains(m.View(), "rpc down") || m.snapshot == nil {
		t.Fatalf("error view = %q", m.View())
	}
}

func TestShellSessionSubscriptions(t *testing.T) {
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	config := util.DefaultConfig()
	config.TokenMint = mint.PublicKey().String()
	shell, _, out, fake := newTestShellLedger(t, config)

	owner := solana.NewWallet().PublicKey()
	ata, err := txbuild.AssociatedTokenAddress(owner, mint.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	shell.subscribe(shell.ctx, owner)
	if fake.Subscriptions(owner) != 1 || fake.Subscriptions(ata) != 1 {
		t.Fatalf("subscriptions owner=%d ata=%d, want 1 each", fake.Subscriptions(owner), fake.Subscriptions(ata))
	}

	fake.SetLamports(owner, 2_000_000_000)
	fake.Notify(owner, ledger.AccountUpdate{Slot: 3, Lamports: 2_000_000_000})
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "2.000000000") {
		if time.Now().After(deadline) {
			t.Fatalf("balance change not printed; output = %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	shell.unsubscribe()
	if fake.Subscriptions(owner) != 0 || fake.Subscriptions(ata) != 0 {
		t.Fatalf("subscriptions left open: owner=%d ata=%d", fake.Subscriptions(owner), fake.Subscriptions(ata))
	}
}

func TestShellCloseEndsSubscriptions(t *testing.T) {
	shell, _, _, fake := newTestShellLedger(t, util.DefaultConfig())
	owner := solana.NewWallet().PublicKey()

	shell.subscribe(shell.ctx, owner)
	if fake.Subscriptions(owner) != 1 {
		t.Fatalf("subscriptions = %d, want 1", fake.Subscriptions(owner))
	}
	shell.Close()
	if fake.Subscriptions(owner) != 0 {
		t.Fatalf("subscriptions = %d after Close, want 0", fake.Subscriptions(owner))
	}
}
