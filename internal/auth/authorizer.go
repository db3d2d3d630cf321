// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrForbidden indicates the action is forbidden for this identity
var ErrForbidden = errors.New("forbidden")

// Action represents an operation being performed
type Action string

const (
	ActionTransferToken Action = "transfer_token"
	ActionMintNFT       Action = "mint_nft"
	ActionTransferNFT   Action = "transfer_nft"
	ActionReadInfo      Action = "read_info"
)

// Authorizer determines if an identity may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, identity *Identity, action Action) error
}

// ActionAuthorizer grants each identity type a fixed set of actions.
type ActionAuthorizer struct {
	grants map[string]map[Action]bool
}

// NewActionAuthorizer returns an authorizer with the uptentiond grants:
// the token holder may do everything. Anonymous callers may do everything
// only when allowAnonymous is set, and may always read service info.
func NewActionAuthorizer(allowAnonymous bool) *ActionAuthorizer {
	all := map[Action]bool{
		ActionTransferToken: true,
		ActionMintNFT:       true,
		ActionTransferNFT:   true,
		ActionReadInfo:      true,
	}
	anon := map[Action]bool{ActionReadInfo: true}
	if allowAnonymous {
		anon = all
	}
	return &ActionAuthorizer{grants: map[string]map[Action]bool{
		"service":   all,
		"anonymous": anon,
	}}
}

func (a *ActionAuthorizer) Authorize(ctx context.Context, identity *Identity, action Action) error {
	if identity == nil {
		return fmt.Errorf("%w: no identity", ErrForbidden)
	}
	if !a.grants[identity.Type][action] {
		return fmt.Errorf("%w: %s may not %s", ErrForbidden, identity.ID, action)
	}
	return nil
}

var _ Authorizer = (*ActionAuthorizer)(nil)
