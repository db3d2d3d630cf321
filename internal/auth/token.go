// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/uptention/uptention/internal/util"
)

// AuthScheme is the scheme of the Authorization header.
// Per RFC 7235, scheme comparison is case-insensitive.
const AuthScheme = "uptention"

// TokenAuthenticator accepts "Authorization: uptention <token>".
type TokenAuthenticator struct {
	expectedToken string
}

// NewTokenAuthenticator creates a new token authenticator
func NewTokenAuthenticator(expectedToken string) *TokenAuthenticator {
	return &TokenAuthenticator{expectedToken: expectedToken}
}

func (t *TokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, AuthScheme) || strings.TrimSpace(token) == "" {
		return nil, ErrInvalidCredentials
	}
	if !util.ValidateToken(token, t.expectedToken) {
		return nil, ErrInvalidCredentials
	}
	return &Identity{ID: DefaultIdentityID, Type: "service", Method: t.Method()}, nil
}

func (t *TokenAuthenticator) Method() string {
	return "uptention-token"
}

// OpenAuthenticator admits every request as an anonymous identity.
// Used when require_auth is false.
type OpenAuthenticator struct{}

func (OpenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	return &Identity{ID: "anonymous", Type: "anonymous", Method: "none"}, nil
}

func (OpenAuthenticator) Method() string {
	return "none"
}

var (
	_ Authenticator = (*TokenAuthenticator)(nil)
	_ Authenticator = OpenAuthenticator{}
)
