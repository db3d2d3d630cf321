// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// Package auth authenticates REST callers of uptentiond and decides which
// operations they may run.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Common authentication errors
var (
	// ErrNoCredentials indicates no authentication credentials were provided
	ErrNoCredentials = errors.New("no authentication credentials provided")

	// ErrInvalidCredentials indicates the provided credentials are invalid
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
)

// DefaultIdentityID is the identity of the single API token holder.
const DefaultIdentityID = "default"

// Identity represents an authenticated caller
type Identity struct {
	ID     string
	Type   string // "service" or "anonymous"
	Method string // Authentication method, for audit entries
}

// Authenticator validates requests and returns the authenticated identity
type Authenticator interface {
	// Authenticate returns ErrNoCredentials or ErrInvalidCredentials on failure.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// Method returns the authentication method name (for logging)
	Method() string
}

type contextKey struct{}

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity from the context.
// Returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
