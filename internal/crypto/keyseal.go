// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommended)
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // AES-256

	saltLen = 32

	// SealedEnvelopeVersion identifies the passphrase-sealed file format.
	SealedEnvelopeVersion = 2
)

// SealedData is a self-contained passphrase-encrypted blob.
// Used for the server keypair at rest.
type SealedData struct {
	EnvelopeVersion int    `json:"envelope_version"` // Always SealedEnvelopeVersion
	Salt            string `json:"salt"`             // Base64-encoded Argon2id salt
	Nonce           string `json:"nonce"`            // Base64-encoded AES-GCM nonce
	Ciphertext      string `json:"ciphertext"`       // Base64-encoded ciphertext
}

// IsSealed reports whether data looks like a SealedData document.
func IsSealed(data []byte) bool {
	var sealed SealedData
	return json.Unmarshal(data, &sealed) == nil && sealed.EnvelopeVersion > 0
}

// deriveKey stretches a passphrase with Argon2id.
// Caller zeroes the result.
func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// SealWithPassphrase encrypts plaintext with a passphrase-derived key.
func SealWithPassphrase(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := SealedData{
		EnvelopeVersion: SealedEnvelopeVersion,
		Salt:            base64.StdEncoding.EncodeToString(salt),
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	return json.MarshalIndent(sealed, "", "  ")
}

// OpenWithPassphrase decrypts a SealWithPassphrase document.
func OpenWithPassphrase(sealedJSON, passphrase []byte) ([]byte, error) {
	var sealed SealedData
	if err := json.Unmarshal(sealedJSON, &sealed); err != nil {
		return nil, fmt.Errorf("failed to parse sealed data: %w", err)
	}
	if sealed.EnvelopeVersion != SealedEnvelopeVersion {
		return nil, fmt.Errorf("envelope_version %d not supported (expected %d)", sealed.EnvelopeVersion, SealedEnvelopeVersion)
	}

	salt, err := base64.StdEncoding.DecodeString(sealed.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("incorrect passphrase or corrupted file")
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
