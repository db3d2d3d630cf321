// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// WSSubscriber implements Subscriber over the Solana PubSub WebSocket API.
// The connection is opened on first use and shared by all subscriptions.
type WSSubscriber struct {
	endpoint string

	mu     sync.Mutex
	client *ws.Client
}

// NewWSSubscriber creates a subscriber for a ws:// or wss:// endpoint.
func NewWSSubscriber(endpoint string) *WSSubscriber {
	return &WSSubscriber{endpoint: endpoint}
}

func (s *WSSubscriber) conn(ctx context.Context) (*ws.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.endpoint, err)
	}
	s.client = client
	return client, nil
}

// SubscribeAccount implements Subscriber.
func (s *WSSubscriber) SubscribeAccount(ctx context.Context, account solana.PublicKey) (AccountStream, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := client.AccountSubscribe(account, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("accountSubscribe %s: %w", account, err)
	}
	return &wsAccountStream{sub: sub}, nil
}

// Close drops the shared connection. Open streams fail on their next Recv.
func (s *WSSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

type wsAccountStream struct {
	sub  *ws.AccountSubscription
	once sync.Once
}

func (w *wsAccountStream) Recv(ctx context.Context) (AccountUpdate, error) {
	res, err := w.sub.Recv(ctx)
	if err != nil {
		return AccountUpdate{}, err
	}
	return AccountUpdate{Slot: res.Context.Slot, Lamports: res.Value.Lamports}, nil
}

func (w *wsAccountStream) Close() {
	w.once.Do(func() { w.sub.Unsubscribe() })
}

// Compile-time interface check
var _ Subscriber = (*WSSubscriber)(nil)
