// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// linkshell drives a Phantom wallet through deep links: connect, send SOL
// or the reward token, and watch balances.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/uptention/uptention/internal/balance"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
	"github.com/uptention/uptention/internal/version"
	"github.com/uptention/uptention/internal/walletlink"
)

func retryPolicy(cfg util.RetryConfig) (ledger.RetryPolicy, error) {
	delay, maxDelay, err := cfg.Durations()
	if err != nil {
		return ledger.RetryPolicy{}, err
	}
	return ledger.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Delay: delay, Backoff: cfg.Backoff, MaxDelay: maxDelay}, nil
}

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("d", "", "Data directory (default: ~/.uptention or UPTENTION_CLIENT_DATA)")
	flag.Parse()

	if *printVersion {
		fmt.Printf("linkshell %s\n", version.String())
		os.Exit(0)
	}

	util.InitLogger()

	resolvedDataDir := util.GetClientDataDir(*dataDir)
	config, err := util.LoadConfig(resolvedDataDir)
	if err != nil {
		fatalf("Error: Invalid configuration: %v", err)
	}
	platform, err := walletlink.ParsePlatform(config.Platform)
	if err != nil {
		fatalf("Error: platform: %v", err)
	}
	cooldown, err := config.CooldownDuration()
	if err != nil {
		fatalf("Error: %v", err)
	}
	refresh, err := retryPolicy(config.Refresh)
	if err != nil {
		fatalf("Error: refresh: %v", err)
	}
	if resolvedDataDir != "" {
		if err := os.MkdirAll(resolvedDataDir, 0700); err != nil {
			fatalf("Error: data directory: %v", err)
		}
	}

	client := ledger.NewRPCClient(config.RPCURL)
	subscriber := ledger.NewWSSubscriber(config.WSURL)
	defer subscriber.Close()
	watcher := balance.NewWatcher(client, subscriber)
	defer watcher.Close()

	// The controller reports transfers to the shell, so the shell exists first.
	shell, err := NewShell(nil, watcher, config, refresh, os.Stdout)
	if err != nil {
		fatalf("Error: %v", err)
	}
	defer shell.Close()

	ctrl, err := walletlink.NewController(walletlink.Options{
		Gateway: walletlink.Gateway{
			Platform:     platform,
			Cluster:      config.Cluster,
			AppURL:       config.AppURL,
			RedirectBase: config.RedirectLink,
		},
		Opener:     &commandOpener{argv: config.OpenCommand, out: os.Stdout},
		Builder:    txbuild.NewBuilder(client),
		TokenMint:  config.TokenMint,
		Cooldown:   cooldown,
		Client:     client,
		Confirm:    ledger.DefaultConfirmPolicy(),
		OnTransfer: shell.OnTransfer,
	})
	if err != nil {
		fatalf("Error: %v", err)
	}
	defer ctrl.Close()
	shell.ctrl = ctrl

	fmt.Printf("Cluster: %s  RPC: %s\n", config.Cluster, config.RPCURL)
	if len(config.OpenCommand) == 0 {
		fmt.Println(dimStyle.Render("No open_command configured; wallet links are printed only"))
	}
	startREPL(shell, resolvedDataDir)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
