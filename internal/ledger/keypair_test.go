// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/crypto"
)

func writeKeypair(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keypair.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeypair_Plain(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	data, err := EncodeKeypair(key)
	if err != nil {
		t.Fatal(err)
	}
	got, sealed, err := LoadKeypair(writeKeypair(t, data), nil)
	if err != nil {
		t.Fatalf("LoadKeypair: %v", err)
	}
	if sealed {
		t.Fatal("plain file reported as sealed")
	}
	if !got.PublicKey().Equals(key.PublicKey()) {
		t.Fatalf("public key = %s, want %s", got.PublicKey(), key.PublicKey())
	}
}

func TestLoadKeypair_Sealed(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	plain, _ := EncodeKeypair(key)
	sealedDoc, err := crypto.SealWithPassphrase(plain, []byte("correct horse"))
	if err != nil {
		t.Fatal(err)
	}
	path := writeKeypair(t, sealedDoc)

	got, sealed, err := LoadKeypair(path, func() ([]byte, error) { return []byte("correct horse"), nil })
	if err != nil || !sealed {
		t.Fatalf("LoadKeypair = sealed %v, err %v", sealed, err)
	}
	if !got.PublicKey().Equals(key.PublicKey()) {
		t.Fatal("unsealed key does not match")
	}

	if _, _, err := LoadKeypair(path, func() ([]byte, error) { return []byte("wrong"), nil }); err == nil {
		t.Fatal("wrong passphrase accepted")
	}
	if _, _, err := LoadKeypair(path, nil); err == nil {
		t.Fatal("sealed file loaded without passphrase source")
	}
}

func TestParseKeypair_Invalid(t *testing.T) {
	a, _ := EncodeKeypair(solana.NewWallet().PrivateKey)
	b, _ := EncodeKeypair(solana.NewWallet().PrivateKey)

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("hello")},
		{"short", []byte("[1,2,3]")},
		{"out of range", []byte("[" + strings.Repeat("300,", 63) + "1]")},
		{"seed and public key disagree", splice(t, a, b)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKeypair(tt.data); !errors.Is(err, ErrInvalidKeypair) {
				t.Fatalf("error = %v, want ErrInvalidKeypair", err)
			}
		})
	}
}

// splice combines the seed of a with the public key of b.
func splice(t *testing.T, a, b []byte) []byte {
	t.Helper()
	ka, err := ParseKeypair(a)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := ParseKeypair(b)
	if err != nil {
		t.Fatal(err)
	}
	mixed := append(append([]byte(nil), ka[:32]...), kb[32:]...)
	data, _ := EncodeKeypair(solana.PrivateKey(mixed))
	return data
}
