// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/crypto"
)

// ErrInvalidKeypair is returned for keypair files that do not hold a
// 64-byte ed25519 key whose public half matches its seed.
var ErrInvalidKeypair = errors.New("invalid keypair file")

// PassphraseFunc supplies the passphrase of a sealed keypair file.
type PassphraseFunc func() ([]byte, error)

// ParseKeypair decodes the keygen format: a JSON array of 64 byte values.
func ParseKeypair(data []byte) (solana.PrivateKey, error) {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKeypair, len(values), ed25519.PrivateKeySize)
	}
	key := make([]byte, ed25519.PrivateKeySize)
	for i, v := range values {
		if v < 0 || v > 255 {
			crypto.ZeroBytes(key)
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
		}
		key[i] = byte(v)
		values[i] = 0
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	defer crypto.ZeroBytes(derived)
	if !solana.PrivateKey(derived).PublicKey().Equals(solana.PrivateKey(key).PublicKey()) {
		crypto.ZeroBytes(key)
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}
	return solana.PrivateKey(key), nil
}

// EncodeKeypair renders key in the keygen format.
func EncodeKeypair(key solana.PrivateKey) ([]byte, error) {
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	return json.Marshal(values)
}

// LoadKeypair reads a plain or passphrase-sealed keypair file. The
// passphrase is requested only for sealed files.
func LoadKeypair(path string, passphrase PassphraseFunc) (key solana.PrivateKey, sealed bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read keypair: %w", err)
	}
	defer crypto.ZeroBytes(data)

	if !crypto.IsSealed(data) {
		key, err := ParseKeypair(data)
		return key, false, err
	}
	if passphrase == nil {
		return nil, true, fmt.Errorf("keypair %s is sealed and no passphrase source is available", path)
	}
	pass, err := passphrase()
	if err != nil {
		return nil, true, err
	}
	defer crypto.ZeroBytes(pass)

	plain, err := crypto.OpenWithPassphrase(data, pass)
	if err != nil {
		return nil, true, fmt.Errorf("unseal keypair: %w", err)
	}
	defer crypto.ZeroBytes(plain)
	key, err = ParseKeypair(plain)
	return key, true, err
}
