// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package util

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"
)

const (
	// PassphraseEnv supplies the keypair passphrase without a prompt.
	PassphraseEnv = "UPTENTION_KEY_PASSPHRASE"

	passphraseCommandTimeout = 5 * time.Second
	maxPassphraseOutputBytes = 8 * 1024
)

// ErrNoPassphraseSource is returned when no env var, command or terminal
// can supply a passphrase.
var ErrNoPassphraseSource = errors.New("no passphrase source (set " + PassphraseEnv + ", configure passphrase_command_argv, or run on a terminal)")

// PassphraseCommandConfig describes a helper that prints a passphrase.
type PassphraseCommandConfig struct {
	Argv []string          // Absolute binary path and arguments
	Env  map[string]string // Explicit environment (not inherited)
}

// ObtainPassphrase returns the keypair passphrase from, in order, the
// UPTENTION_KEY_PASSPHRASE variable, the configured command, or a prompt
// on the controlling terminal. The caller zeroes the result.
func ObtainPassphrase(cmd *PassphraseCommandConfig, prompt string) ([]byte, error) {
	if v, ok := os.LookupEnv(PassphraseEnv); ok && v != "" {
		return []byte(v), nil
	}
	if cmd != nil {
		return RunPassphraseCommand(cmd)
	}
	fd := int(os.Stdin.Fd()) // #nosec G115 - file descriptors are small integers
	if !term.IsTerminal(fd) {
		return nil, ErrNoPassphraseSource
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(pass) == 0 {
		return nil, fmt.Errorf("empty passphrase")
	}
	return pass, nil
}

// RunPassphraseCommand runs the helper with the verb "read" injected as
// the first argument and returns its decoded stdout.
//
// Exactly one trailing newline is stripped. Output prefixed with "base64:"
// or "hex:" is decoded. NUL bytes and empty output are rejected.
func RunPassphraseCommand(cfg *PassphraseCommandConfig) ([]byte, error) {
	if err := ValidatePassphraseCommand(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), passphraseCommandTimeout)
	defer cancel()

	args := append([]string{"read"}, cfg.Argv[1:]...)
	cmd := exec.CommandContext(ctx, cfg.Argv[0], args...) //nolint:gosec // validated above
	cmd.Env = make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	// Kill the whole process group so helpers that fork do not linger
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	defer func() {
		clear(stdout.Bytes())
		stdout.Reset()
	}()
	cmd.Stdout = &capWriter{w: &stdout, limit: maxPassphraseOutputBytes}
	// Stderr may carry secrets from a misbehaving helper
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("passphrase_command_argv: command timed out after %s", passphraseCommandTimeout)
		}
		var capErr *outputCapError
		if errors.As(err, &capErr) {
			return nil, fmt.Errorf("passphrase_command_argv: stdout exceeded %d bytes", maxPassphraseOutputBytes)
		}
		return nil, fmt.Errorf("passphrase_command_argv: command failed: %w", err)
	}

	out := stdout.Bytes()
	if trimmed, ok := bytes.CutSuffix(out, []byte("\n")); ok {
		out = bytes.TrimSuffix(trimmed, []byte("\r"))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("passphrase_command_argv: command produced empty output")
	}
	if bytes.IndexByte(out, 0) >= 0 {
		return nil, fmt.Errorf("passphrase_command_argv: output contains NUL bytes")
	}
	return decodePassphrase(out)
}

func decodePassphrase(out []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(out, []byte("base64:")):
		enc := out[len("base64:"):]
		dec := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
		n, err := base64.StdEncoding.Decode(dec, enc)
		if err != nil {
			clear(dec)
			return nil, fmt.Errorf("passphrase_command_argv: invalid base64 output: %w", err)
		}
		return dec[:n], nil
	case bytes.HasPrefix(out, []byte("hex:")):
		enc := out[len("hex:"):]
		dec := make([]byte, hex.DecodedLen(len(enc)))
		n, err := hex.Decode(dec, enc)
		if err != nil {
			clear(dec)
			return nil, fmt.Errorf("passphrase_command_argv: invalid hex output: %w", err)
		}
		return dec[:n], nil
	}
	return bytes.Clone(out), nil
}

// ValidatePassphraseCommand checks that argv[0] is an absolute path to an
// executable that is not group or world writable.
func ValidatePassphraseCommand(cfg *PassphraseCommandConfig) error {
	if cfg == nil || len(cfg.Argv) == 0 {
		return fmt.Errorf("passphrase_command_argv: must be non-empty")
	}
	bin := cfg.Argv[0]
	if !filepath.IsAbs(bin) {
		return fmt.Errorf("passphrase_command_argv: argv[0] must be an absolute path, got %q", bin)
	}
	info, err := os.Stat(bin)
	if err != nil {
		return fmt.Errorf("passphrase_command_argv: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("passphrase_command_argv: %s is a directory", bin)
	}
	perm := info.Mode().Perm()
	if perm&0111 == 0 {
		return fmt.Errorf("passphrase_command_argv: %s is not executable (mode %04o)", bin, perm)
	}
	if perm&0022 != 0 {
		return fmt.Errorf("passphrase_command_argv: %s is group or world writable (mode %04o)", bin, perm)
	}
	return nil
}

// ConfirmPassphrase prompts twice on the terminal and requires a match.
func ConfirmPassphrase() ([]byte, error) {
	first, err := ObtainPassphrase(nil, "New passphrase: ")
	if err != nil {
		return nil, err
	}
	if _, ok := os.LookupEnv(PassphraseEnv); ok {
		return first, nil
	}
	second, err := ObtainPassphrase(nil, "Repeat passphrase: ")
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)
	if subtle.ConstantTimeCompare(first, second) != 1 {
		clear(first)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

type outputCapError struct{}

func (*outputCapError) Error() string { return "output limit exceeded" }

// capWriter fails the copy once more than limit bytes arrive.
type capWriter struct {
	w     io.Writer
	limit int
	n     int
}

func (c *capWriter) Write(p []byte) (int, error) {
	if c.n+len(p) > c.limit {
		return 0, &outputCapError{}
	}
	c.n += len(p)
	return c.w.Write(p)
}
