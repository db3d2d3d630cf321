// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"context"
	"crypto/rand"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/ledger/ledgertest"
	"github.com/uptention/uptention/internal/protocol"
	"github.com/uptention/uptention/internal/txbuild"
)

type recordingOpener struct {
	mu    sync.Mutex
	links []string
	err   error
	delay time.Duration // Sleep before recording, ignoring ctx
}

func (o *recordingOpener) Open(ctx context.Context, link string) error {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.links = append(o.links, link)
	return nil
}

func (o *recordingOpener) count(method string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, l := range o.links {
		if strings.Contains(l, "/ul/v1/"+method+"?") {
			n++
		}
	}
	return n
}

func (o *recordingOpener) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.links[len(o.links)-1]
}

// fakeWallet plays the Phantom side of the protocol.
type fakeWallet struct {
	pub, priv *[crypto.KeySize]byte
	account   solana.PublicKey
}

func newFakeWallet(t *testing.T) *fakeWallet {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	acct, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return &fakeWallet{pub: pub, priv: priv, account: acct.PublicKey()}
}

func (w *fakeWallet) secret(t *testing.T, link string) *crypto.SharedSecret {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base58.Decode(u.Query().Get(protocol.ParamDappEncryptionPublicKey))
	if err != nil || len(raw) != crypto.KeySize {
		t.Fatalf("bad dapp key in %q", link)
	}
	var dapp [crypto.KeySize]byte
	copy(dapp[:], raw)
	return crypto.DeriveSharedSecret(w.priv, &dapp)
}

func (w *fakeWallet) connectCallback(t *testing.T, link string, walletKey *[crypto.KeySize]byte) string {
	t.Helper()
	env, err := crypto.SealJSON(protocol.ConnectData{Session: "session-1", PublicKey: w.account.String()}, w.secret(t, link))
	if err != nil {
		t.Fatal(err)
	}
	q := url.Values{}
	q.Set(protocol.ParamPhantomEncryptionPublicKey, base58.Encode(walletKey[:]))
	q.Set(protocol.ParamNonce, env.NonceBase58())
	q.Set(protocol.ParamData, env.CiphertextBase58())
	return "uptention://onConnect?" + q.Encode()
}

// signCallback opens the request payload and answers with a signature.
func (w *fakeWallet) signCallback(t *testing.T, link string) (string, string) {
	t.Helper()
	secret := w.secret(t, link)
	u, _ := url.Parse(link)
	env, err := crypto.DecodeEnvelope(u.Query().Get(protocol.ParamPayload), u.Query().Get(protocol.ParamNonce))
	if err != nil {
		t.Fatal(err)
	}
	var req protocol.SignAndSendPayload
	if err := crypto.OpenJSON(env, secret, &req); err != nil {
		t.Fatalf("wallet cannot open request: %v", err)
	}
	if req.Session != "session-1" || req.Transaction == "" {
		t.Fatalf("unexpected request payload %+v", req)
	}

	var sig solana.Signature
	_, _ = rand.Read(sig[:])
	out, err := crypto.SealJSON(protocol.SignAndSendData{Signature: sig.String()}, secret)
	if err != nil {
		t.Fatal(err)
	}
	q := url.Values{}
	q.Set(protocol.ParamNonce, out.NonceBase58())
	q.Set(protocol.ParamData, out.CiphertextBase58())
	return "uptention://onSignAndSendTransaction?" + q.Encode(), sig.String()
}

type harness struct {
	ctrl      *Controller
	opener    *recordingOpener
	wallet    *fakeWallet
	ledger    *ledgertest.Ledger
	transfers chan PendingTransfer
}

func newHarness(t *testing.T, withConfirm bool) *harness {
	t.Helper()
	h := &harness{
		opener:    &recordingOpener{},
		wallet:    newFakeWallet(t),
		ledger:    ledgertest.New(),
		transfers: make(chan PendingTransfer, 32),
	}
	opts := Options{
		Gateway:    testGateway(PlatformAndroid),
		Opener:     h.opener,
		Builder:    txbuild.NewBuilder(h.ledger),
		Cooldown:   time.Minute,
		OnTransfer: func(p PendingTransfer) { h.transfers <- p },
	}
	if withConfirm {
		opts.Client = h.ledger
		opts.Confirm = ledger.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	}
	ctrl, err := NewController(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	link, err := h.ctrl.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := h.ctrl.HandleCallback(ctx, h.wallet.connectCallback(t, link, h.wallet.pub)); err != nil {
		t.Fatalf("connect callback: %v", err)
	}
}

func (h *harness) state(t *testing.T) Status {
	t.Helper()
	st, err := h.ctrl.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func waitTransfer(t *testing.T, ch <-chan PendingTransfer, want TransferStatus) PendingTransfer {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p := <-ch:
			if p.Status == want {
				return p
			}
		case <-timeout:
			t.Fatalf("timed out waiting for transfer status %s", want)
		}
	}
}

func TestController_Connect(t *testing.T) {
	h := newHarness(t, false)
	h.connect(t)

	st := h.state(t)
	if st.State != StateConnected {
		t.Fatalf("state = %s, want connected", st.State)
	}
	if st.Account != h.wallet.account.String() {
		t.Fatalf("account = %s, want %s", st.Account, h.wallet.account)
	}
	if h.opener.count(protocol.MethodConnect) != 1 {
		t.Fatalf("connect links = %d", h.opener.count(protocol.MethodConnect))
	}
}

func TestController_TamperedWalletKeyStaysDisconnected(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	link, err := h.ctrl.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	other, _, _ := box.GenerateKey(rand.Reader)
	_, err = h.ctrl.HandleCallback(ctx, h.wallet.connectCallback(t, link, other))
	if !errors.Is(err, crypto.ErrDecryptionFailure) {
		t.Fatalf("error = %v, want ErrDecryptionFailure", err)
	}
	if st := h.state(t); st.State != StateDisconnected || st.Account != "" {
		t.Fatalf("state = %s account = %q, want disconnected", st.State, st.Account)
	}
}

func TestController_ConnectWalletUnavailable(t *testing.T) {
	h := newHarness(t, false)
	h.opener.err = errors.New("no handler for https://phantom.app")

	if _, err := h.ctrl.Connect(context.Background()); !errors.Is(err, ErrWalletUnavailable) {
		t.Fatalf("error = %v, want ErrWalletUnavailable", err)
	}
	if st := h.state(t); st.State != StateDisconnected {
		t.Fatalf("state = %s", st.State)
	}
}

func TestController_ConnectOutlivesCallerDeadline(t *testing.T) {
	h := newHarness(t, false)
	h.opener.delay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	link, err := h.ctrl.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !strings.HasPrefix(link, "https://phantom.app/ul/v1/connect?") {
		t.Fatalf("link = %q", link)
	}
	if st := h.state(t); st.State != StateConnecting {
		t.Fatalf("state = %s, want connecting", st.State)
	}
}

func TestController_SendRequiresSession(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.ctrl.SendNative(context.Background(), h.wallet.account.String(), "1")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
	if h.opener.count(protocol.MethodSignAndSendTransaction) != 0 {
		t.Fatal("sign request dispatched without a session")
	}
}

func TestController_DoubleTapDispatchesOnce(t *testing.T) {
	h := newHarness(t, false)
	h.connect(t)
	to, _ := solana.NewRandomPrivateKey()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ctrl.SendNative(context.Background(), to.PublicKey().String(), "0.5")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, inFlight := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTransferInFlight):
			inFlight++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || inFlight != 1 {
		t.Fatalf("ok = %d inFlight = %d, want 1/1", ok, inFlight)
	}
	if n := h.opener.count(protocol.MethodSignAndSendTransaction); n != 1 {
		t.Fatalf("sign requests dispatched = %d, want 1", n)
	}
}

func TestController_SignedResultConfirms(t *testing.T) {
	h := newHarness(t, true)
	h.connect(t)
	ctx := context.Background()
	to, _ := solana.NewRandomPrivateKey()

	link, err := h.ctrl.SendNative(ctx, to.PublicKey().String(), "1.5")
	if err != nil {
		t.Fatalf("SendNative: %v", err)
	}
	if st := h.state(t); st.State != StateAwaitingSignature {
		t.Fatalf("state = %s, want awaiting-signature", st.State)
	}

	callback, sig := h.wallet.signCallback(t, link)
	if _, err := h.ctrl.HandleCallback(ctx, callback); err != nil {
		t.Fatalf("sign callback: %v", err)
	}

	p := waitTransfer(t, h.transfers, TransferConfirmed)
	if p.Signature != sig {
		t.Fatalf("signature = %s, want %s", p.Signature, sig)
	}
	if p.Amount != 1500000000 {
		t.Fatalf("amount = %d", p.Amount)
	}
	st := h.state(t)
	if st.State != StateConnected || st.CooldownActive {
		t.Fatalf("state = %s cooldown = %v after result", st.State, st.CooldownActive)
	}
}

func TestController_RejectionKeepsSession(t *testing.T) {
	h := newHarness(t, false)
	h.connect(t)
	ctx := context.Background()
	to, _ := solana.NewRandomPrivateKey()

	if _, err := h.ctrl.SendNative(ctx, to.PublicKey().String(), "1"); err != nil {
		t.Fatal(err)
	}
	_, err := h.ctrl.HandleCallback(ctx, "uptention://onSignAndSendTransaction?errorCode=4001&errorMessage=User+rejected+the+request")
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("error = %v, want ErrUserRejected", err)
	}

	waitTransfer(t, h.transfers, TransferRejected)
	if st := h.state(t); st.State != StateConnected {
		t.Fatalf("state = %s, want connected", st.State)
	}

	// Gate released by the terminal response
	if _, err := h.ctrl.SendNative(ctx, to.PublicKey().String(), "1"); err != nil {
		t.Fatalf("retry after rejection: %v", err)
	}
}

func TestController_TamperedSignResultFailsTransferOnly(t *testing.T) {
	h := newHarness(t, false)
	h.connect(t)
	ctx := context.Background()
	to, _ := solana.NewRandomPrivateKey()

	if _, err := h.ctrl.SendNative(ctx, to.PublicKey().String(), "1"); err != nil {
		t.Fatal(err)
	}
	// Sealed under an unrelated secret
	callback := "uptention://onSignAndSendTransaction?" + sealedQuery(t, false).Encode()
	if _, err := h.ctrl.HandleCallback(ctx, callback); !errors.Is(err, crypto.ErrDecryptionFailure) {
		t.Fatalf("error = %v, want ErrDecryptionFailure", err)
	}
	waitTransfer(t, h.transfers, TransferFailed)
	if st := h.state(t); st.State != StateConnected {
		t.Fatalf("state = %s, want connected", st.State)
	}
}

func TestController_Disconnect(t *testing.T) {
	h := newHarness(t, false)
	h.connect(t)
	ctx := context.Background()

	link, err := h.ctrl.Disconnect(ctx)
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	u, _ := url.Parse(link)
	env, err := crypto.DecodeEnvelope(u.Query().Get(protocol.ParamPayload), u.Query().Get(protocol.ParamNonce))
	if err != nil {
		t.Fatal(err)
	}
	var payload protocol.DisconnectPayload
	if err := crypto.OpenJSON(env, h.wallet.secret(t, link), &payload); err != nil || payload.Session != "session-1" {
		t.Fatalf("disconnect payload = %+v, %v", payload, err)
	}
	if st := h.state(t); st.State != StateDisconnected {
		t.Fatalf("state = %s", st.State)
	}

	// The wallet's later onDisconnect does not apply
	if _, err := h.ctrl.HandleCallback(ctx, "uptention://onDisconnect"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestController_WalletDisconnectCallback(t *testing.T) {
	h := newHarness(t, false)
	h.connect(t)
	if _, err := h.ctrl.HandleCallback(context.Background(), "uptention://onDisconnect"); err != nil {
		t.Fatal(err)
	}
	if st := h.state(t); st.State != StateDisconnected {
		t.Fatalf("state = %s", st.State)
	}
}

func TestController_Cancel(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	if _, err := h.ctrl.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if st := h.state(t); st.State != StateDisconnected {
		t.Fatalf("state = %s", st.State)
	}
	if err := h.ctrl.Cancel(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel error = %v", err)
	}
}

func TestController_ClosedRejectsCommands(t *testing.T) {
	h := newHarness(t, false)
	h.ctrl.Close()
	if _, err := h.ctrl.Connect(context.Background()); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("error = %v, want ErrControllerClosed", err)
	}
}
