// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"net/url"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/protocol"
)

const codeUserRejected = protocol.ErrorCodeUserRejected

// Local error codes for callbacks that could not be classified.
const (
	CodeMalformedURL     = "malformed_url"
	CodeUnknownCallback  = "unknown_callback"
	CodeMissingParameter = "missing_parameter"
	CodeInvalidEncoding  = "invalid_encoding"
)

// InboundEvent is a classified wallet callback. Implemented only by
// ConnectedEvent, DisconnectedEvent, SignedResultEvent and ErrorEvent.
type InboundEvent interface {
	inbound()
}

// ConnectedEvent carries the wallet's encryption key and the still-encrypted
// ConnectData payload.
type ConnectedEvent struct {
	WalletPublicKey [crypto.KeySize]byte
	Payload         crypto.Envelope
}

// DisconnectedEvent reports that the wallet ended the session.
type DisconnectedEvent struct{}

// SignedResultEvent carries the still-encrypted SignAndSendData payload.
type SignedResultEvent struct {
	Payload crypto.Envelope
}

// ErrorEvent is a wallet-reported error or a callback that could not be
// classified (Code is then one of the local Code* values).
type ErrorEvent struct {
	Method  string // Callback name, empty when unknown
	Code    string
	Message string
}

func (ConnectedEvent) inbound()    {}
func (DisconnectedEvent) inbound() {}
func (SignedResultEvent) inbound() {}
func (ErrorEvent) inbound()        {}

// Err returns the event as a *WalletError.
func (e ErrorEvent) Err() error {
	return &WalletError{Method: e.Method, Code: e.Code, Message: e.Message}
}

// callbackName returns the last non-empty path segment of u, or its host
// for custom-scheme links like uptention://onConnect.
func callbackName(u *url.URL) string {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return u.Host
}

// ClassifyCallback maps a wallet redirect URL to exactly one InboundEvent.
// The callback kind is matched on a whole path segment. Unparseable or
// incomplete callbacks yield an ErrorEvent; it never panics.
func ClassifyCallback(raw string) InboundEvent {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ErrorEvent{Code: CodeMalformedURL, Message: err.Error()}
	}

	name := callbackName(u)
	switch name {
	case protocol.CallbackConnect, protocol.CallbackDisconnect, protocol.CallbackSignAndSendTransaction:
	default:
		return ErrorEvent{Code: CodeUnknownCallback, Message: "unrecognized callback " + quoteShort(name)}
	}

	q := u.Query()
	if code := q.Get(protocol.ParamErrorCode); code != "" {
		return ErrorEvent{Method: name, Code: code, Message: q.Get(protocol.ParamErrorMessage)}
	}

	if name == protocol.CallbackDisconnect {
		return DisconnectedEvent{}
	}

	data, nonce := q.Get(protocol.ParamData), q.Get(protocol.ParamNonce)
	if data == "" || nonce == "" {
		return ErrorEvent{Method: name, Code: CodeMissingParameter, Message: "callback requires data and nonce"}
	}
	env, err := crypto.DecodeEnvelope(data, nonce)
	if err != nil {
		return ErrorEvent{Method: name, Code: CodeInvalidEncoding, Message: err.Error()}
	}

	if name == protocol.CallbackSignAndSendTransaction {
		return SignedResultEvent{Payload: env}
	}

	walletKey := q.Get(protocol.ParamPhantomEncryptionPublicKey)
	if walletKey == "" {
		return ErrorEvent{Method: name, Code: CodeMissingParameter, Message: "callback requires " + protocol.ParamPhantomEncryptionPublicKey}
	}
	keyBytes, err := base58.Decode(walletKey)
	if err != nil || len(keyBytes) != crypto.KeySize {
		return ErrorEvent{Method: name, Code: CodeInvalidEncoding, Message: "invalid wallet encryption key"}
	}
	ev := ConnectedEvent{Payload: env}
	copy(ev.WalletPublicKey[:], keyBytes)
	return ev
}

func quoteShort(s string) string {
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return "\"" + s + "\""
}
