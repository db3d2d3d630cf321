// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import "errors"

// Sentinel errors for wallet link operations.
// Use errors.Is() to check for these.
var (
	// ErrUserRejected is returned when the user declines a request in the wallet.
	// The session stays connected.
	ErrUserRejected = errors.New("request rejected in wallet")

	// ErrWalletUnavailable is returned when the wallet application cannot be opened.
	ErrWalletUnavailable = errors.New("wallet application unavailable")

	// ErrNotConnected is returned for operations that require a connected session.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrTransferInFlight is returned when a transfer is started inside the
	// cooldown window of a previous one.
	ErrTransferInFlight = errors.New("a transfer is already in progress")

	// ErrInvalidTransition is returned when an event or command does not apply
	// to the current session state. The state is left unchanged.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrControllerClosed is returned after Close.
	ErrControllerClosed = errors.New("controller closed")
)

// WalletError is an error reported by the wallet through a callback.
type WalletError struct {
	Method  string
	Code    string
	Message string
}

func (e *WalletError) Error() string {
	if e.Message == "" {
		return "wallet error " + e.Code + " on " + e.Method
	}
	return "wallet error " + e.Code + " on " + e.Method + ": " + e.Message
}

// Unwrap maps the user-rejected code to ErrUserRejected.
func (e *WalletError) Unwrap() error {
	if e.Code == codeUserRejected {
		return ErrUserRejected
	}
	return nil
}
