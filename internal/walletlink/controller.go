// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/protocol"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
)

// WalletOpener hands a deep link to the wallet application.
type WalletOpener interface {
	// Open returns an error wrapping ErrWalletUnavailable when no wallet can
	// handle the link.
	Open(ctx context.Context, link string) error
}

// Options configures a Controller.
type Options struct {
	Gateway   Gateway
	Opener    WalletOpener
	Builder   *txbuild.Builder
	TokenMint string // Mint used by SendToken
	Cooldown  time.Duration

	// Client, when set, confirms wallet-submitted transactions with Confirm.
	Client  ledger.Client
	Confirm ledger.RetryPolicy

	// OnTransfer is called on the dispatcher goroutine whenever the pending
	// transfer changes. It must not call back into the Controller.
	OnTransfer func(PendingTransfer)
}

// Status is a point-in-time view of the controller.
type Status struct {
	State          State
	Account        string // Connected wallet address, empty when disconnected
	PublicKey      string // This client's encryption key
	Transfer       *PendingTransfer
	CooldownActive bool
}

// Controller owns the key pair and the session. Every command and inbound
// event runs on one dispatcher goroutine, in arrival order.
type Controller struct {
	opts    Options
	keys    *KeyPair
	store   SessionStore
	gate    *Cooldown
	pending *PendingTransfer

	cmds   chan func()
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// NewController generates a fresh key pair and starts the dispatcher.
func NewController(opts Options) (*Controller, error) {
	if opts.Opener == nil {
		return nil, errors.New("wallet opener is required")
	}
	if opts.Builder == nil {
		return nil, errors.New("transaction builder is required")
	}
	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:   opts,
		keys:   keys,
		gate:   NewCooldown(opts.Cooldown),
		cmds:   make(chan func()),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	c.wg.Add(1)
	go c.run()
	return c, nil
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.done:
			return
		}
	}
}

// do runs fn on the dispatcher and waits for its result. ctx only bounds
// the wait for the dispatcher to accept fn; once accepted, fn always runs
// to completion and do returns its error, so values fn captures are safe
// to read afterwards.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.cmds <- func() { errc <- fn() }:
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// cmds is unbuffered, so the dispatcher is already running fn.
	return <-errc
}

// post queues fn without waiting.
func (c *Controller) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// Close stops the dispatcher and zeroes all key material.
func (c *Controller) Close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		c.wg.Wait()
		c.store.Reset()
		c.keys.Destroy()
	})
}

// PublicKey returns this client's encryption key in base58.
func (c *Controller) PublicKey() string {
	return c.keys.PublicBase58()
}

// Status returns the current state.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, func() error {
		st.State = c.store.State()
		st.PublicKey = c.keys.PublicBase58()
		st.CooldownActive = c.gate.Active()
		if sess := c.store.Session(); sess != nil {
			st.Account = sess.Account.String()
		}
		if c.pending != nil {
			p := *c.pending
			st.Transfer = &p
		}
		return nil
	})
	return st, err
}

func walletUnavailable(err error) error {
	if errors.Is(err, ErrWalletUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
}

// Connect issues a connect request and returns the link handed to the wallet.
func (c *Controller) Connect(ctx context.Context) (string, error) {
	var link string
	err := c.do(ctx, func() error {
		if err := c.store.BeginConnect(); err != nil {
			return err
		}
		var err error
		link, err = c.opts.Gateway.ConnectURL(c.keys.Public)
		if err != nil {
			_ = c.store.FailConnect()
			return err
		}
		if err := c.opts.Opener.Open(ctx, link); err != nil {
			_ = c.store.FailConnect()
			return walletUnavailable(err)
		}
		return nil
	})
	return link, err
}

// Disconnect asks the wallet to end the session and discards it locally
// whether or not the wallet could be reached.
func (c *Controller) Disconnect(ctx context.Context) (string, error) {
	var link string
	err := c.do(ctx, func() error {
		sess := c.store.Session()
		if c.store.State() != StateConnected || sess == nil {
			return fmt.Errorf("%w: disconnect while %s", ErrNotConnected, c.store.State())
		}
		env, err := crypto.SealJSON(protocol.DisconnectPayload{Session: sess.Token}, sess.Secret)
		if err != nil {
			return err
		}
		link, err = c.opts.Gateway.DisconnectURL(c.keys.Public, env)
		if err != nil {
			return err
		}
		openErr := c.opts.Opener.Open(ctx, link)
		_ = c.store.Disconnect()
		if openErr != nil {
			return walletUnavailable(openErr)
		}
		return nil
	})
	return link, err
}

// Cancel stops waiting for an outstanding connect or signature. A request
// already handed to the wallet cannot be retracted.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch c.store.State() {
		case StateConnecting:
			return c.store.FailConnect()
		case StateAwaitingSignature:
			_ = c.store.FailSignature()
			c.gate.Release()
			c.finish(TransferFailed, errors.New("stopped waiting for the wallet"))
			return nil
		}
		return fmt.Errorf("%w: nothing to cancel while %s", ErrInvalidTransition, c.store.State())
	})
}

// HandleCallback classifies a wallet redirect and applies it to the session.
// The classified event is always returned; the error reports why it could
// not be applied (or the wallet's own error).
func (c *Controller) HandleCallback(ctx context.Context, raw string) (InboundEvent, error) {
	ev := ClassifyCallback(raw)
	err := c.do(ctx, func() error {
		switch ev := ev.(type) {
		case ConnectedEvent:
			return c.onConnected(ev)
		case SignedResultEvent:
			return c.onSignedResult(ev)
		case DisconnectedEvent:
			return c.store.Disconnect()
		case ErrorEvent:
			return c.onError(ev)
		}
		return fmt.Errorf("unhandled event %T", ev)
	})
	return ev, err
}

func (c *Controller) onConnected(ev ConnectedEvent) error {
	if err := c.store.require(StateConnecting, "connect callback"); err != nil {
		return err
	}

	secret := c.keys.SharedSecret(&ev.WalletPublicKey)
	var data protocol.ConnectData
	if err := crypto.OpenJSON(ev.Payload, secret, &data); err != nil {
		secret.Destroy()
		_ = c.store.FailConnect()
		return fmt.Errorf("connect payload: %w", err)
	}
	account, err := ledger.ParseAccount(data.PublicKey)
	if err == nil && data.Session == "" {
		err = errors.New("connect payload has no session")
	}
	if err != nil {
		secret.Destroy()
		_ = c.store.FailConnect()
		return fmt.Errorf("connect payload: %w", err)
	}

	util.Debug("wallet connected", "account", account.String())
	return c.store.CompleteConnect(&Session{
		Token:           data.Session,
		WalletPublicKey: ev.WalletPublicKey,
		Secret:          secret,
		Account:         account,
	})
}

func (c *Controller) onSignedResult(ev SignedResultEvent) error {
	if err := c.store.require(StateAwaitingSignature, "sign callback"); err != nil {
		return err
	}

	var data protocol.SignAndSendData
	err := crypto.OpenJSON(ev.Payload, c.store.Session().Secret, &data)
	var sig solana.Signature
	if err == nil {
		sig, err = solana.SignatureFromBase58(data.Signature)
	}
	c.gate.Release()
	if err != nil {
		_ = c.store.FailSignature()
		err = fmt.Errorf("sign result: %w", err)
		c.finish(TransferFailed, err)
		return err
	}

	_ = c.store.CompleteSignature()
	if c.pending != nil {
		c.pending.Signature = data.Signature
	}
	c.finish(TransferSubmitted, nil)
	if c.opts.Client != nil && c.pending != nil {
		c.wg.Add(1)
		go c.confirm(c.pending, sig)
	}
	return nil
}

// confirm waits for a wallet-submitted signature off the dispatcher.
func (c *Controller) confirm(p *PendingTransfer, sig solana.Signature) {
	defer c.wg.Done()
	err := ledger.WaitForConfirmation(c.ctx, c.opts.Client, sig, ledger.CommitmentConfirmed, c.opts.Confirm)
	c.post(func() {
		if c.pending != p {
			return
		}
		switch {
		case err == nil:
			c.finish(TransferConfirmed, nil)
		case errors.Is(err, ledger.ErrTransactionTimeout):
			// Outcome unknown: stays submitted
			c.finish(TransferSubmitted, err)
		default:
			c.finish(TransferFailed, err)
		}
	})
}

func (c *Controller) onError(ev ErrorEvent) error {
	werr := ev.Err()
	switch {
	case c.store.State() == StateConnecting && ev.Method == protocol.CallbackConnect:
		_ = c.store.FailConnect()
	case c.store.State() == StateAwaitingSignature && ev.Method == protocol.CallbackSignAndSendTransaction:
		_ = c.store.FailSignature()
		c.gate.Release()
		status := TransferFailed
		if errors.Is(werr, ErrUserRejected) {
			status = TransferRejected
		}
		c.finish(status, werr)
	}
	return werr
}

// finish updates the pending transfer and notifies the observer.
func (c *Controller) finish(status TransferStatus, err error) {
	if c.pending == nil {
		return
	}
	c.pending.Status = status
	c.pending.Err = err
	if c.opts.OnTransfer != nil {
		c.opts.OnTransfer(*c.pending)
	}
}

// SendNative starts a SOL transfer and returns the sign link handed to the wallet.
func (c *Controller) SendNative(ctx context.Context, to, amount string) (string, error) {
	return c.transfer(ctx, PendingTransfer{Recipient: to}, func(from string) (*txbuild.Unsigned, error) {
		return c.opts.Builder.NativeTransfer(ctx, from, to, amount)
	})
}

// SendToken starts a transfer of the configured token.
func (c *Controller) SendToken(ctx context.Context, to, amount, memo string) (string, error) {
	mint, err := ledger.ParseAccount(c.opts.TokenMint)
	if err != nil {
		return "", fmt.Errorf("token mint: %w", err)
	}
	p := PendingTransfer{Recipient: to, Mint: &mint, Memo: memo}
	return c.transfer(ctx, p, func(from string) (*txbuild.Unsigned, error) {
		return c.opts.Builder.TokenTransfer(ctx, txbuild.TokenTransferParams{
			From:   from,
			To:     to,
			Mint:   mint.String(),
			Amount: amount,
			Memo:   memo,
		})
	})
}

// transfer gates, builds off the dispatcher, then seals and dispatches.
func (c *Controller) transfer(ctx context.Context, p PendingTransfer, build func(from string) (*txbuild.Unsigned, error)) (string, error) {
	var from string
	err := c.do(ctx, func() error {
		if !c.gate.TryAcquire() {
			return ErrTransferInFlight
		}
		switch c.store.State() {
		case StateConnected:
		case StateAwaitingSignature:
			c.gate.Release()
			return ErrTransferInFlight
		default:
			c.gate.Release()
			return ErrNotConnected
		}
		from = c.store.Session().Account.String()
		return nil
	})
	if err != nil {
		return "", err
	}

	unsigned, err := build(from)
	if err != nil {
		c.post(c.gate.Release)
		return "", err
	}

	var link string
	err = c.do(ctx, func() error {
		sess := c.store.Session()
		if c.store.State() != StateConnected || sess == nil || sess.Account.String() != from {
			c.gate.Release()
			return ErrNotConnected
		}
		txBytes, err := unsigned.Serialize()
		if err != nil {
			c.gate.Release()
			return err
		}
		payload := protocol.SignAndSendPayload{Transaction: base58.Encode(txBytes), Session: sess.Token}
		env, err := crypto.SealJSON(payload, sess.Secret)
		if err != nil {
			c.gate.Release()
			return err
		}
		link, err = c.opts.Gateway.SignAndSendURL(c.keys.Public, txBytes, env)
		if err != nil {
			c.gate.Release()
			return err
		}

		p.Amount = unsigned.Amount
		p.Decimals = unsigned.Decimals
		p.Status = TransferBuilt
		c.pending = &p
		_ = c.store.BeginSignature()
		c.finish(TransferAwaitingSignature, nil)

		if err := c.opts.Opener.Open(ctx, link); err != nil {
			_ = c.store.FailSignature()
			c.gate.Release()
			err = walletUnavailable(err)
			c.finish(TransferFailed, err)
			return err
		}
		return nil
	})
	return link, err
}
