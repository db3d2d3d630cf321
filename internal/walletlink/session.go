// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/crypto"
)

// State is the wallet session state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAwaitingSignature
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAwaitingSignature:
		return "awaiting-signature"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is an authorized wallet session.
type Session struct {
	Token           string
	WalletPublicKey [crypto.KeySize]byte // Wallet's encryption key
	Secret          *crypto.SharedSecret
	Account         solana.PublicKey // User's wallet address
}

// SessionStore is the session state machine. It is not safe for concurrent
// use; Controller serializes access.
//
//	Disconnected      --BeginConnect-->      Connecting
//	Connecting        --CompleteConnect-->   Connected
//	Connecting        --FailConnect-->       Disconnected
//	Connected         --BeginSignature-->    AwaitingSignature
//	AwaitingSignature --CompleteSignature--> Connected
//	AwaitingSignature --FailSignature-->     Connected
//	Connected         --Disconnect-->        Disconnected
type SessionStore struct {
	state   State
	session *Session
}

// State returns the current state.
func (s *SessionStore) State() State {
	return s.state
}

// Session returns the active session, or nil when not connected.
func (s *SessionStore) Session() *Session {
	return s.session
}

func (s *SessionStore) require(from State, op string) error {
	if s.state != from {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s.state)
	}
	return nil
}

// BeginConnect records an issued connect request.
func (s *SessionStore) BeginConnect() error {
	if err := s.require(StateDisconnected, "connect"); err != nil {
		return err
	}
	s.state = StateConnecting
	return nil
}

// CompleteConnect stores a successfully decrypted session.
func (s *SessionStore) CompleteConnect(session *Session) error {
	if err := s.require(StateConnecting, "complete connect"); err != nil {
		return err
	}
	if session == nil || session.Secret == nil || session.Token == "" {
		return fmt.Errorf("%w: incomplete session", ErrInvalidTransition)
	}
	s.session = session
	s.state = StateConnected
	return nil
}

// FailConnect abandons a pending connect.
func (s *SessionStore) FailConnect() error {
	if err := s.require(StateConnecting, "fail connect"); err != nil {
		return err
	}
	s.state = StateDisconnected
	return nil
}

// BeginSignature records an issued sign-and-send request.
func (s *SessionStore) BeginSignature() error {
	if err := s.require(StateConnected, "sign"); err != nil {
		return err
	}
	s.state = StateAwaitingSignature
	return nil
}

// CompleteSignature records a signed result.
func (s *SessionStore) CompleteSignature() error {
	if err := s.require(StateAwaitingSignature, "complete signature"); err != nil {
		return err
	}
	s.state = StateConnected
	return nil
}

// FailSignature records a rejected or failed sign request. The session stays valid.
func (s *SessionStore) FailSignature() error {
	if err := s.require(StateAwaitingSignature, "fail signature"); err != nil {
		return err
	}
	s.state = StateConnected
	return nil
}

// Disconnect discards the session and zeroes its secret.
func (s *SessionStore) Disconnect() error {
	if err := s.require(StateConnected, "disconnect"); err != nil {
		return err
	}
	s.clear()
	return nil
}

// Reset drops any session regardless of state.
func (s *SessionStore) Reset() {
	s.clear()
}

func (s *SessionStore) clear() {
	if s.session != nil {
		s.session.Secret.Destroy()
		s.session.Token = ""
		s.session = nil
	}
	s.state = StateDisconnected
}
