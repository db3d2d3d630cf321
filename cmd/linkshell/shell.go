// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/balance"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
	"github.com/uptention/uptention/internal/walletlink"
)

// errExit ends the REPL.
var errExit = errors.New("exit")

const commandTimeout = 30 * time.Second

// Shell executes linkshell commands against one wallet controller.
type Shell struct {
	ctrl    *walletlink.Controller
	watcher *balance.Watcher
	mint    *solana.PublicKey // nil when no token is configured
	refresh ledger.RetryPolicy
	config  util.Config

	mu   sync.Mutex
	out  io.Writer
	last balance.Balances // Last pulled snapshot, for change detection
	subs []*balance.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// runWatch shows the live balance view; replaced in tests.
	runWatch func(ctx context.Context, owner solana.PublicKey) error
}

type commandHelp struct {
	usage, description string
}

var commands = []commandHelp{
	{"connect", "Ask the wallet to connect"},
	{"callback <url>", "Apply a redirect URL the wallet opened"},
	{"send <to> <sol>", "Send SOL"},
	{"sendtoken <to> <amount> [memo...]", "Send the reward token with an optional memo"},
	{"balance", "Show SOL and token balances"},
	{"disconnect", "End the wallet session"},
	{"status", "Show session and transfer state"},
	{"watch", "Live balance view (q to leave)"},
	{"help", "Show this help"},
	{"quit", "Exit"},
}

// NewShell creates a Shell writing to out.
func NewShell(ctrl *walletlink.Controller, watcher *balance.Watcher, config util.Config, refresh ledger.RetryPolicy, out io.Writer) (*Shell, error) {
	s := &Shell{ctrl: ctrl, watcher: watcher, config: config, refresh: refresh, out: out}
	if config.TokenMint != "" {
		mint, err := ledger.ParseAccount(config.TokenMint)
		if err != nil {
			return nil, fmt.Errorf("token_mint: %w", err)
		}
		s.mint = &mint
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.runWatch = s.watchTUI
	return s, nil
}

// SetOutput redirects printing, e.g. to the readline writer.
func (s *Shell) SetOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Close stops background refreshes and session subscriptions.
func (s *Shell) Close() {
	s.cancel()
	s.unsubscribe()
	s.wg.Wait()
}

// subscribe watches the owner and its token account for the rest of the
// session. Each notification triggers a pull; changes are printed.
func (s *Shell) subscribe(ctx context.Context, owner solana.PublicKey) {
	s.unsubscribe()
	accounts := []solana.PublicKey{owner}
	if s.mint != nil {
		if ata, err := txbuild.AssociatedTokenAddress(owner, *s.mint); err == nil {
			accounts = append(accounts, ata)
		}
	}
	onChange := func(balance.Update) { s.balanceChanged(owner) }

	var subs []*balance.Subscription
	for _, account := range accounts {
		sub, err := s.watcher.Subscribe(ctx, account, onChange)
		if err != nil {
			util.Debug("balance subscription failed", "account", account.String(), "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	s.mu.Lock()
	s.subs = subs
	s.mu.Unlock()
}

// unsubscribe must not be called with s.mu held: it waits for callbacks
// that take it.
func (s *Shell) unsubscribe() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		s.watcher.Unsubscribe(sub)
	}
}

func (s *Shell) balanceChanged(owner solana.PublicKey) {
	b, err := s.watcher.Refresh(s.ctx, owner, s.mint)
	if err != nil {
		util.Debug("balance refresh failed", "error", err)
		return
	}
	s.mu.Lock()
	changed := !b.Equal(s.last)
	s.last = b
	s.mu.Unlock()
	if changed {
		s.printf("%s\n", pendingStyle.Render("Balance changed"))
		s.printBalances(b)
	}
}

// OnTransfer is the controller's transfer observer. It runs on the
// dispatcher goroutine, so follow-up work is started asynchronously.
func (s *Shell) OnTransfer(p walletlink.PendingTransfer) {
	line := fmt.Sprintf("Transfer %s", transferStyle(p.Status).Render(p.Status.String()))
	if p.Signature != "" {
		line += " " + dimStyle.Render(ledger.ExplorerURL(p.Signature, s.config.Cluster))
	}
	if p.Err != nil {
		line += ": " + p.Err.Error()
	}
	s.printf("%s\n", line)

	if p.Status == walletlink.TransferConfirmed {
		s.wg.Add(1)
		go s.refreshAfterTransfer()
	}
}

func (s *Shell) refreshAfterTransfer() {
	defer s.wg.Done()
	st, err := s.ctrl.Status(s.ctx)
	if err != nil || st.Account == "" {
		return
	}
	owner, err := ledger.ParseAccount(st.Account)
	if err != nil {
		return
	}
	s.mu.Lock()
	previous := s.last
	s.mu.Unlock()

	b, err := s.watcher.AwaitChange(s.ctx, owner, s.mint, previous, s.refresh)
	if err != nil && !errors.Is(err, ledger.ErrRetriesExhausted) {
		util.Debug("balance refresh after transfer failed", "error", err)
		return
	}
	s.remember(b)
	s.printBalances(b)
}

func (s *Shell) remember(b balance.Balances) {
	s.mu.Lock()
	s.last = b
	s.mu.Unlock()
}

func (s *Shell) printBalances(b balance.Balances) {
	s.printf("SOL:   %s\n", ledger.FormatAmount(b.Lamports, 9))
	if s.mint != nil {
		s.printf("Token: %s\n", b.TokenDisplay())
	}
}

// Execute runs one command. errExit asks the caller to stop.
func (s *Shell) Execute(name string, args []string) error {
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()

	switch name {
	case "connect":
		if _, err := s.ctrl.Connect(ctx); err != nil {
			return err
		}
		s.printf("%s\n", pendingStyle.Render("Waiting for the wallet; paste the redirect with 'callback <url>'"))
		return nil

	case "callback":
		if len(args) != 1 {
			return errors.New("usage: callback <url>")
		}
		return s.callback(ctx, args[0])

	case "send":
		if len(args) != 2 {
			return errors.New("usage: send <to> <sol>")
		}
		if _, err := s.ctrl.SendNative(ctx, args[0], args[1]); err != nil {
			return err
		}
		s.printf("%s\n", pendingStyle.Render("Approve the transfer in the wallet"))
		return nil

	case "sendtoken":
		if len(args) < 2 {
			return errors.New("usage: sendtoken <to> <amount> [memo...]")
		}
		if s.mint == nil {
			return errors.New("token_mint is not configured")
		}
		memo := strings.Join(args[2:], " ")
		if _, err := s.ctrl.SendToken(ctx, args[0], args[1], memo); err != nil {
			return err
		}
		s.printf("%s\n", pendingStyle.Render("Approve the transfer in the wallet"))
		return nil

	case "balance":
		owner, err := s.account(ctx)
		if err != nil {
			return err
		}
		b, err := s.watcher.Refresh(ctx, owner, s.mint)
		if err != nil {
			return err
		}
		s.remember(b)
		s.printBalances(b)
		return nil

	case "disconnect":
		if _, err := s.ctrl.Disconnect(ctx); err != nil {
			return err
		}
		s.unsubscribe()
		s.printf("%s\n", errStyle.Render("Disconnected"))
		return nil

	case "status":
		return s.status(ctx)

	case "watch":
		owner, err := s.account(ctx)
		if err != nil {
			return err
		}
		return s.runWatch(s.ctx, owner)

	case "help", "?":
		s.help()
		return nil

	case "quit", "exit":
		return errExit
	}
	return fmt.Errorf("unknown command %q (type 'help')", name)
}

func (s *Shell) account(ctx context.Context) (solana.PublicKey, error) {
	st, err := s.ctrl.Status(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if st.Account == "" {
		return solana.PublicKey{}, walletlink.ErrNotConnected
	}
	return ledger.ParseAccount(st.Account)
}

func (s *Shell) callback(ctx context.Context, raw string) error {
	ev, err := s.ctrl.HandleCallback(ctx, raw)
	if err != nil {
		if errors.Is(err, walletlink.ErrUserRejected) {
			s.printf("%s\n", pendingStyle.Render("Rejected in the wallet"))
			return nil
		}
		return err
	}
	switch ev.(type) {
	case walletlink.ConnectedEvent:
		owner, err := s.account(ctx)
		if err != nil {
			return err
		}
		s.printf("%s %s\n", okStyle.Render("Connected"), owner)
		s.subscribe(s.ctx, owner)
		b, err := s.watcher.Refresh(ctx, owner, s.mint)
		if err != nil {
			s.printf("%s\n", errStyle.Render("Balance unavailable: "+err.Error()))
			return nil
		}
		s.remember(b)
		s.printBalances(b)
	case walletlink.DisconnectedEvent:
		s.unsubscribe()
		s.printf("%s\n", errStyle.Render("Wallet ended the session"))
	}
	return nil
}

func (s *Shell) status(ctx context.Context) error {
	st, err := s.ctrl.Status(ctx)
	if err != nil {
		return err
	}
	s.printf("State:    %s\n", stateStyle(st.State).Render(st.State.String()))
	if st.Account != "" {
		s.printf("Account:  %s\n", st.Account)
	}
	s.printf("Key:      %s\n", dimStyle.Render(st.PublicKey))
	s.printf("Cluster:  %s\n", s.config.Cluster)
	if st.Transfer != nil {
		p := st.Transfer
		what := "SOL"
		if p.Mint != nil {
			what = "tokens"
		}
		s.printf("Transfer: %s %s to %s (%s)\n", p.DisplayAmount(), what, p.Recipient, transferStyle(p.Status).Render(p.Status.String()))
		if p.Signature != "" {
			s.printf("          %s\n", dimStyle.Render(ledger.ExplorerURL(p.Signature, s.config.Cluster)))
		}
	}
	if st.CooldownActive {
		s.printf("%s\n", pendingStyle.Render("Cooldown active"))
	}
	return nil
}

func (s *Shell) help() {
	s.printf("%s\n", titleStyle.Render("Commands"))
	for _, c := range commands {
		s.printf("  %-36s %s\n", c.usage, dimStyle.Render(c.description))
	}
}
