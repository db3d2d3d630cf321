// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package protocol defines the deep-link wire vocabulary shared with the
// Phantom wallet: method names, query parameter names and the JSON bodies
// carried inside encrypted payloads.
// This is the single source of truth for the wire protocol.
package protocol

// Outbound request methods (last path segment of the wallet URL)
const (
	MethodConnect                = "connect"
	MethodDisconnect             = "disconnect"
	MethodSignAndSendTransaction = "signAndSendTransaction"
)

// Inbound callback methods (last path segment of the redirect URL)
const (
	CallbackConnect                = "onConnect"
	CallbackDisconnect             = "onDisconnect"
	CallbackSignAndSendTransaction = "onSignAndSendTransaction"
)

// Query parameter names
const (
	ParamDappEncryptionPublicKey    = "dapp_encryption_public_key"
	ParamPhantomEncryptionPublicKey = "phantom_encryption_public_key"
	ParamCluster                    = "cluster"
	ParamAppURL                     = "app_url"
	ParamRedirectLink               = "redirect_link"
	ParamNonce                      = "nonce"
	ParamPayload                    = "payload"
	ParamData                       = "data"
	ParamErrorCode                  = "errorCode"
	ParamErrorMessage               = "errorMessage"
)

// Wallet error codes for a user-declined request (EIP-1193 style)
const (
	ErrorCodeUserRejected = "4001"
)

// ConnectData is the decrypted payload of an onConnect callback.
type ConnectData struct {
	Session   string `json:"session"`
	PublicKey string `json:"public_key"` // User's wallet address (base58)
}

// DisconnectPayload is the encrypted body of a disconnect request.
type DisconnectPayload struct {
	Session string `json:"session"`
}

// SignAndSendPayload is the encrypted body of a signAndSendTransaction request.
type SignAndSendPayload struct {
	Transaction string `json:"transaction"` // Base58 serialized unsigned transaction
	Session     string `json:"session"`
}

// SignAndSendData is the decrypted payload of an onSignAndSendTransaction callback.
type SignAndSendData struct {
	Signature string `json:"signature"` // Base58 transaction signature
}
