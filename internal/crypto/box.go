// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the length of X25519 public and private keys.
	KeySize = 32

	// NonceSize is the length of a NaCl box nonce.
	NonceSize = 24
)

var (
	// ErrDecryptionFailure is returned when an envelope fails authentication:
	// wrong shared secret, tampered ciphertext or wrong nonce.
	ErrDecryptionFailure = errors.New("decryption failure")

	// ErrSecretDestroyed is returned when sealing or opening with a destroyed secret.
	ErrSecretDestroyed = errors.New("shared secret destroyed")
)

// SharedSecret is the precomputed box key for one wallet session.
type SharedSecret struct {
	key       [KeySize]byte
	destroyed bool
}

// DeriveSharedSecret precomputes the box key for localPrivate and remotePublic.
// Deterministic for a given key pair.
func DeriveSharedSecret(localPrivate, remotePublic *[KeySize]byte) *SharedSecret {
	s := &SharedSecret{}
	box.Precompute(&s.key, remotePublic, localPrivate)
	return s
}

// Destroy zeroes the key. Later Seal/Open calls fail with ErrSecretDestroyed.
func (s *SharedSecret) Destroy() {
	if s == nil {
		return
	}
	ZeroBytes(s.key[:])
	s.destroyed = true
}

// Envelope is one encrypted message on the deep-link channel.
type Envelope struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// NonceBase58 returns the nonce in the wallet's wire encoding.
func (e Envelope) NonceBase58() string {
	return base58.Encode(e.Nonce[:])
}

// CiphertextBase58 returns the ciphertext in the wallet's wire encoding.
func (e Envelope) CiphertextBase58() string {
	return base58.Encode(e.Ciphertext)
}

// DecodeEnvelope builds an Envelope from base58 data and nonce parameters.
func DecodeEnvelope(dataB58, nonceB58 string) (Envelope, error) {
	var env Envelope
	nonce, err := base58.Decode(nonceB58)
	if err != nil {
		return env, fmt.Errorf("invalid nonce encoding: %w", err)
	}
	if len(nonce) != NonceSize {
		return env, fmt.Errorf("invalid nonce length %d (expected %d)", len(nonce), NonceSize)
	}
	data, err := base58.Decode(dataB58)
	if err != nil {
		return env, fmt.Errorf("invalid payload encoding: %w", err)
	}
	if len(data) < box.Overhead {
		return env, fmt.Errorf("payload too short (%d bytes)", len(data))
	}
	copy(env.Nonce[:], nonce)
	env.Ciphertext = data
	return env, nil
}

// NonceSource supplies nonce randomness. crypto/rand.Reader in production.
var NonceSource io.Reader = rand.Reader

// Seal encrypts plaintext under secret with a fresh random nonce.
func Seal(plaintext []byte, secret *SharedSecret) (Envelope, error) {
	var env Envelope
	if secret == nil || secret.destroyed {
		return env, ErrSecretDestroyed
	}
	if _, err := io.ReadFull(NonceSource, env.Nonce[:]); err != nil {
		return env, fmt.Errorf("failed to generate nonce: %w", err)
	}
	env.Ciphertext = box.SealAfterPrecomputation(nil, plaintext, &env.Nonce, &secret.key)
	return env, nil
}

// Open authenticates and decrypts env. Any failure is ErrDecryptionFailure.
func Open(env Envelope, secret *SharedSecret) ([]byte, error) {
	if secret == nil || secret.destroyed {
		return nil, ErrSecretDestroyed
	}
	plaintext, ok := box.OpenAfterPrecomputation(nil, env.Ciphertext, &env.Nonce, &secret.key)
	if !ok {
		return nil, ErrDecryptionFailure
	}
	return plaintext, nil
}

// SealJSON marshals v and seals the result.
func SealJSON(v any, secret *SharedSecret) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	defer ZeroBytes(data)
	return Seal(data, secret)
}

// OpenJSON opens env and unmarshals the plaintext into v.
// A plaintext that is not valid JSON is also reported as ErrDecryptionFailure.
func OpenJSON(env Envelope, secret *SharedSecret, v any) error {
	plaintext, err := Open(env, secret)
	if err != nil {
		return err
	}
	defer ZeroBytes(plaintext)
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", ErrDecryptionFailure, err)
	}
	return nil
}
