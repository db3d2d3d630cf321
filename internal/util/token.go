// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// TokenLength is the number of random bytes in a token (32 bytes = 256 bits)
	TokenLength = 32

	// TokenFile is the API token file name in the data directory
	TokenFile = "uptention.token"
)

// GetTokenPath returns the path to the API token file in dataDir.
func GetTokenPath(dataDir string) string {
	return filepath.Join(dataDir, TokenFile)
}

// GenerateToken generates a cryptographically secure random token
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ReadToken reads a token from a file
// Returns empty string if file doesn't exist (not an error)
// Warns to stderr if file permissions are more permissive than 0600
func ReadToken(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		fmt.Fprintf(os.Stderr, "WARNING: %s has mode %04o, should be 0600 (run: chmod 600 %s)\n", path, perm, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteToken writes a token to a file with secure permissions (0600)
func WriteToken(path, token string) error {
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadServerToken loads the API token from dataDir, generating one if it
// doesn't exist.
func LoadServerToken(dataDir string) (string, error) {
	path := GetTokenPath(dataDir)

	token, err := ReadToken(path)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	token, err = GenerateToken()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := WriteToken(path, token); err != nil {
		return "", err
	}

	fmt.Printf("✓ Generated new API token: %s\n", path)
	fmt.Printf("  Send it as \"Authorization: uptention <token>\" on transfer and mint requests\n")
	return token, nil
}

// ValidateToken compares two tokens in constant time to prevent timing attacks
func ValidateToken(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
