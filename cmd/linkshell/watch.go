// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/balance"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/txbuild"
)

// accountMsg is a push notification for a watched account.
type accountMsg balance.Update

// snapshotMsg carries a pulled balance snapshot.
type snapshotMsg struct {
	balances balance.Balances
	err      error
}

// watchModel renders live balances. Notifications only signal a change;
// amounts always come from a fresh pull.
type watchModel struct {
	ctx     context.Context
	watcher *balance.Watcher
	owner   solana.PublicKey
	mint    *solana.PublicKey
	cluster string

	snapshot *balance.Balances
	slot     uint64
	updates  int
	updated  time.Time
	err      error
}

func (m watchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		b, err := m.watcher.Refresh(m.ctx, m.owner, m.mint)
		return snapshotMsg{balances: b, err: err}
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.refresh()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}
	case accountMsg:
		m.updates++
		if msg.Slot > m.slot {
			m.slot = msg.Slot
		}
		return m, m.refresh()
	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		b := msg.balances
		m.snapshot = &b
		m.updated = time.Now()
		m.err = nil
	}
	return m, nil
}

func (m watchModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Live balance") + "\n")
	sb.WriteString(dimStyle.Render(m.owner.String()+" on "+m.cluster) + "\n\n")

	if m.snapshot == nil {
		sb.WriteString(pendingStyle.Render("Loading..."))
	} else {
		sb.WriteString(fmt.Sprintf("SOL    %s\n", okStyle.Render(ledger.FormatAmount(m.snapshot.Lamports, 9))))
		if m.mint != nil {
			sb.WriteString(fmt.Sprintf("Token  %s\n", okStyle.Render(m.snapshot.TokenDisplay())))
		}
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n%d update(s), slot %d, refreshed %s", m.updates, m.slot, m.updated.Format("15:04:05"))))
	}
	if m.err != nil {
		sb.WriteString("\n" + errStyle.Render("Error: "+m.err.Error()))
	}
	sb.WriteString("\n\n" + dimStyle.Render("r refresh • q back"))
	return boxStyle.Render(sb.String()) + "\n"
}

// watchTUI subscribes to the owner (and its token account) and runs the
// live view until the user leaves it.
func (s *Shell) watchTUI(ctx context.Context, owner solana.PublicKey) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := watchModel{ctx: ctx, watcher: s.watcher, owner: owner, mint: s.mint, cluster: s.config.Cluster}
	p := tea.NewProgram(model)
	notify := func(u balance.Update) { p.Send(accountMsg(u)) }

	accounts := []solana.PublicKey{owner}
	if s.mint != nil {
		ata, err := txbuild.AssociatedTokenAddress(owner, *s.mint)
		if err != nil {
			return err
		}
		accounts = append(accounts, ata)
	}
	for _, account := range accounts {
		sub, err := s.watcher.Subscribe(ctx, account, notify)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", account, err)
		}
		defer s.watcher.Unsubscribe(sub)
	}

	_, err := p.Run()
	return err
}
