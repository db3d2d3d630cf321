// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/protocol"
)

// Platform selects the wallet URL scheme.
type Platform string

const (
	PlatformAndroid Platform = "android" // https://phantom.app/ul/v1/<method>
	PlatformIOS     Platform = "ios"     // phantom://ul/v1/<method>
)

const (
	universalLinkBase = "https://phantom.app/ul/v1/"
	customSchemeBase  = "phantom://ul/v1/"
)

// ParsePlatform accepts "android" or "ios" (case-insensitive).
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformAndroid:
		return PlatformAndroid, nil
	case PlatformIOS:
		return PlatformIOS, nil
	}
	return "", fmt.Errorf("unknown platform %q (expected android or ios)", s)
}

// OutboundRequest is a request to the wallet. Implemented only by
// ConnectRequest, DisconnectRequest and SignAndSendRequest.
type OutboundRequest interface {
	method() string
	callback() string
	params() url.Values
}

// ConnectRequest asks the wallet to authorize this client.
type ConnectRequest struct {
	publicKey [crypto.KeySize]byte
}

// NewConnectRequest creates a connect request for the client's public key.
func NewConnectRequest(publicKey [crypto.KeySize]byte) ConnectRequest {
	return ConnectRequest{publicKey: publicKey}
}

func (r ConnectRequest) method() string   { return protocol.MethodConnect }
func (r ConnectRequest) callback() string { return protocol.CallbackConnect }
func (r ConnectRequest) params() url.Values {
	v := url.Values{}
	v.Set(protocol.ParamDappEncryptionPublicKey, base58.Encode(r.publicKey[:]))
	return v
}

// DisconnectRequest ends the wallet session. Payload seals a DisconnectPayload.
type DisconnectRequest struct {
	publicKey [crypto.KeySize]byte
	payload   crypto.Envelope
}

// NewDisconnectRequest creates a disconnect request carrying a sealed payload.
func NewDisconnectRequest(publicKey [crypto.KeySize]byte, payload crypto.Envelope) (DisconnectRequest, error) {
	if len(payload.Ciphertext) == 0 {
		return DisconnectRequest{}, errors.New("disconnect request requires a sealed payload")
	}
	return DisconnectRequest{publicKey: publicKey, payload: payload}, nil
}

func (r DisconnectRequest) method() string   { return protocol.MethodDisconnect }
func (r DisconnectRequest) callback() string { return protocol.CallbackDisconnect }
func (r DisconnectRequest) params() url.Values {
	return sealedParams(r.publicKey, r.payload)
}

// SignAndSendRequest asks the wallet to sign and submit a transaction.
// Payload seals a SignAndSendPayload carrying Transaction.
type SignAndSendRequest struct {
	publicKey   [crypto.KeySize]byte
	transaction []byte
	payload     crypto.Envelope
}

// NewSignAndSendRequest creates a sign-and-send request. transaction is the
// serialized unsigned transaction sealed inside payload.
func NewSignAndSendRequest(publicKey [crypto.KeySize]byte, transaction []byte, payload crypto.Envelope) (SignAndSendRequest, error) {
	if len(transaction) == 0 {
		return SignAndSendRequest{}, errors.New("sign request requires a transaction")
	}
	if len(payload.Ciphertext) == 0 {
		return SignAndSendRequest{}, errors.New("sign request requires a sealed payload")
	}
	return SignAndSendRequest{publicKey: publicKey, transaction: transaction, payload: payload}, nil
}

// Transaction returns the unsigned transaction bytes.
func (r SignAndSendRequest) Transaction() []byte { return r.transaction }

func (r SignAndSendRequest) method() string   { return protocol.MethodSignAndSendTransaction }
func (r SignAndSendRequest) callback() string { return protocol.CallbackSignAndSendTransaction }
func (r SignAndSendRequest) params() url.Values {
	return sealedParams(r.publicKey, r.payload)
}

func sealedParams(publicKey [crypto.KeySize]byte, env crypto.Envelope) url.Values {
	v := url.Values{}
	v.Set(protocol.ParamDappEncryptionPublicKey, base58.Encode(publicKey[:]))
	v.Set(protocol.ParamNonce, env.NonceBase58())
	v.Set(protocol.ParamPayload, env.CiphertextBase58())
	return v
}

// Gateway builds wallet deep links.
type Gateway struct {
	Platform     Platform
	Cluster      string // devnet, testnet or mainnet-beta
	AppURL       string // Shown by the wallet as the requesting app
	RedirectBase string // e.g. uptention:// or https://app.example/phantom
}

func (g Gateway) base() string {
	if g.Platform == PlatformIOS {
		return customSchemeBase
	}
	return universalLinkBase
}

// redirect joins RedirectBase and a callback name as one path segment.
func (g Gateway) redirect(callback string) string {
	base := g.RedirectBase
	if strings.HasSuffix(base, "://") || strings.HasSuffix(base, "/") {
		return base + callback
	}
	return base + "/" + callback
}

// URL renders req as a wallet deep link.
func (g Gateway) URL(req OutboundRequest) (string, error) {
	if req == nil {
		return "", errors.New("nil request")
	}
	if g.RedirectBase == "" {
		return "", errors.New("redirect base not configured")
	}
	v := req.params()
	v.Set(protocol.ParamRedirectLink, g.redirect(req.callback()))
	if _, ok := req.(ConnectRequest); ok {
		v.Set(protocol.ParamCluster, g.Cluster)
		v.Set(protocol.ParamAppURL, g.AppURL)
	}
	return g.base() + req.method() + "?" + v.Encode(), nil
}

// ConnectURL is URL(NewConnectRequest(publicKey)).
func (g Gateway) ConnectURL(publicKey [crypto.KeySize]byte) (string, error) {
	return g.URL(NewConnectRequest(publicKey))
}

// DisconnectURL is URL of a disconnect request sealed in env.
func (g Gateway) DisconnectURL(publicKey [crypto.KeySize]byte, env crypto.Envelope) (string, error) {
	req, err := NewDisconnectRequest(publicKey, env)
	if err != nil {
		return "", err
	}
	return g.URL(req)
}

// SignAndSendURL is URL of a sign-and-send request for transaction sealed in env.
func (g Gateway) SignAndSendURL(publicKey [crypto.KeySize]byte, transaction []byte, env crypto.Envelope) (string, error) {
	req, err := NewSignAndSendRequest(publicKey, transaction, env)
	if err != nil {
		return "", err
	}
	return g.URL(req)
}
