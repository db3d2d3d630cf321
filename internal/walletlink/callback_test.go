// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"crypto/rand"
	"net/url"
	"testing"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/protocol"
)

func sealedQuery(t *testing.T, withWalletKey bool) url.Values {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	env, err := crypto.SealJSON(map[string]string{"k": "v"}, crypto.DeriveSharedSecret(priv, pub))
	if err != nil {
		t.Fatal(err)
	}
	q := url.Values{}
	q.Set(protocol.ParamNonce, env.NonceBase58())
	q.Set(protocol.ParamData, env.CiphertextBase58())
	if withWalletKey {
		q.Set(protocol.ParamPhantomEncryptionPublicKey, base58.Encode(pub[:]))
	}
	return q
}

func TestClassifyCallback(t *testing.T) {
	sealed := sealedQuery(t, true).Encode()

	tests := []struct {
		name     string
		raw      string
		wantType string
		wantCode string
	}{
		{"custom scheme connect", "uptention://onConnect?" + sealed, "connected", ""},
		{"https connect", "https://app.uptention.io/phantom/onConnect?" + sealed, "connected", ""},
		{"trailing slash", "https://app.uptention.io/phantom/onConnect/?" + sealed, "connected", ""},
		{"expo dev link", "exp://192.168.0.2:8081/--/onSignAndSendTransaction?" + sealed, "signed", ""},
		{"opaque form", "uptention:onSignAndSendTransaction?" + sealed, "signed", ""},
		{"disconnect", "uptention://onDisconnect", "disconnected", ""},
		{"wallet rejection", "uptention://onSignAndSendTransaction?errorCode=4001&errorMessage=User+rejected", "error", "4001"},
		{"connect error", "uptention://onConnect?errorCode=-32603&errorMessage=internal", "error", "-32603"},
		{"substring is not a match", "https://app.uptention.io/onConnectHelp?" + sealed, "error", CodeUnknownCallback},
		{"callback name in query only", "https://app.uptention.io/home?next=onConnect", "error", CodeUnknownCallback},
		{"callback name in earlier segment", "https://app.uptention.io/onConnect/settings", "error", CodeUnknownCallback},
		{"case sensitive", "uptention://onconnect?" + sealed, "error", CodeUnknownCallback},
		{"missing data", "uptention://onSignAndSendTransaction?nonce=abc", "error", CodeMissingParameter},
		{"missing wallet key", "uptention://onConnect?" + sealedQuery(t, false).Encode(), "error", CodeMissingParameter},
		{"bad nonce", "uptention://onConnect?nonce=0OIl&data=abc", "error", CodeInvalidEncoding},
		{"short wallet key", "uptention://onConnect?phantom_encryption_public_key=abc&" + sealedQuery(t, false).Encode(), "error", CodeInvalidEncoding},
		{"malformed url", "uptention://on%zzConnect", "error", CodeMalformedURL},
		{"empty", "", "error", CodeUnknownCallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ClassifyCallback(tt.raw)
			var gotType, gotCode string
			switch e := ev.(type) {
			case ConnectedEvent:
				gotType = "connected"
			case SignedResultEvent:
				gotType = "signed"
			case DisconnectedEvent:
				gotType = "disconnected"
			case ErrorEvent:
				gotType, gotCode = "error", e.Code
			default:
				t.Fatalf("unexpected event %T", ev)
			}
			if gotType != tt.wantType || gotCode != tt.wantCode {
				t.Fatalf("ClassifyCallback(%q) = %s/%s, want %s/%s", tt.raw, gotType, gotCode, tt.wantType, tt.wantCode)
			}
		})
	}
}

func TestClassifyCallback_ConnectCarriesWalletKey(t *testing.T) {
	q := sealedQuery(t, true)
	ev, ok := ClassifyCallback("uptention://onConnect?" + q.Encode()).(ConnectedEvent)
	if !ok {
		t.Fatal("expected ConnectedEvent")
	}
	if base58.Encode(ev.WalletPublicKey[:]) != q.Get(protocol.ParamPhantomEncryptionPublicKey) {
		t.Fatal("wallet key not carried")
	}
	if ev.Payload.NonceBase58() != q.Get(protocol.ParamNonce) {
		t.Fatal("nonce not carried")
	}
}

func TestErrorEvent_UserRejected(t *testing.T) {
	ev := ClassifyCallback("uptention://onSignAndSendTransaction?errorCode=4001").(ErrorEvent)
	if ev.Method != protocol.CallbackSignAndSendTransaction {
		t.Fatalf("method = %q", ev.Method)
	}
	if err := ev.Err(); !isRejected(err) {
		t.Fatalf("4001 should unwrap to ErrUserRejected: %v", err)
	}
}

func isRejected(err error) bool {
	we, ok := err.(*WalletError)
	return ok && we.Unwrap() == ErrUserRejected
}

func FuzzClassifyCallback(f *testing.F) {
	seeds := []string{
		"uptention://onConnect?phantom_encryption_public_key=abc&nonce=def&data=ghi",
		"uptention://onDisconnect",
		"https://x/onSignAndSendTransaction?errorCode=4001",
		"exp://host/--/onConnect",
		"://",
		"%",
		"uptention:onConnect",
		"",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		if ClassifyCallback(raw) == nil {
			t.Fatalf("ClassifyCallback(%q) returned nil", raw)
		}
	})
}
