// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/uptention/uptention/internal/crypto"
)

// KeyPair is the ephemeral X25519 identity of one client process.
// It is never persisted.
type KeyPair struct {
	Public  [crypto.KeySize]byte
	Private [crypto.KeySize]byte
}

// GenerateKeyPair creates a fresh key pair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	kp := &KeyPair{Public: *pub, Private: *priv}
	crypto.ZeroBytes(priv[:])
	return kp, nil
}

// PublicBase58 returns the public key in deep-link encoding.
func (k *KeyPair) PublicBase58() string {
	return base58.Encode(k.Public[:])
}

// SharedSecret derives the session key with a wallet's public key.
func (k *KeyPair) SharedSecret(walletPublic *[crypto.KeySize]byte) *crypto.SharedSecret {
	return crypto.DeriveSharedSecret(&k.Private, walletPublic)
}

// Destroy zeroes the private key.
func (k *KeyPair) Destroy() {
	if k == nil {
		return
	}
	crypto.ZeroBytes(k.Private[:])
}
