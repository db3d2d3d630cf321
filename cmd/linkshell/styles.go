// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/uptention/uptention/internal/walletlink"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2)
)

func stateStyle(s walletlink.State) lipgloss.Style {
	switch s {
	case walletlink.StateConnected:
		return okStyle
	case walletlink.StateDisconnected:
		return errStyle
	}
	return pendingStyle
}

func transferStyle(s walletlink.TransferStatus) lipgloss.Style {
	switch s {
	case walletlink.TransferConfirmed:
		return okStyle
	case walletlink.TransferFailed, walletlink.TransferRejected:
		return errStyle
	}
	return pendingStyle
}
