// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/uptention/uptention/internal/auth"
	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/custody"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/nft"
	"github.com/uptention/uptention/internal/protocol"
	"github.com/uptention/uptention/internal/security"
	"github.com/uptention/uptention/internal/storage"
	"github.com/uptention/uptention/internal/txbuild"
	"github.com/uptention/uptention/internal/util"
	"github.com/uptention/uptention/internal/version"
)

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// confirmPolicy converts the confirm block into a ledger.RetryPolicy.
func confirmPolicy(cfg util.RetryConfig) (ledger.RetryPolicy, error) {
	delay, maxDelay, err := cfg.Durations()
	if err != nil {
		return ledger.RetryPolicy{}, err
	}
	return ledger.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       delay,
		Backoff:     cfg.Backoff,
		MaxDelay:    maxDelay,
	}, nil
}

// openContentStore builds the configured store. The FileStore is also
// returned as an http.Handler to serve its content.
func openContentStore(cfg util.ContentStoreConfig) (storage.ContentStore, http.Handler, error) {
	timeout, err := cfg.UploadTimeout()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Kind {
	case "http":
		return storage.NewHTTPStore(cfg.UploadURL, cfg.GatewayURL, cfg.Token, timeout), nil, nil
	case "file":
		fs, err := storage.NewFileStore(cfg.Dir, cfg.PublicURL)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	}
	return nil, nil, fmt.Errorf("unknown content store kind %q", cfg.Kind)
}

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("d", "", "Data directory (required, or set UPTENTION_DATA)")
	flag.Parse()
	if *printVersion {
		fmt.Printf("uptentiond %s\n", version.String())
		os.Exit(0)
	}

	resolvedDataDir := util.RequireServerDataDir(*dataDir)
	util.InitServerLogger(os.Stderr)

	fmt.Println("Uptention - Custodial Reward Server")
	fmt.Println("============================================")
	fmt.Printf("Data directory: %s\n", resolvedDataDir)

	config, err := util.LoadServerConfig(resolvedDataDir)
	if err != nil {
		fatalf("%v", err)
	}
	mint, err := ledger.ParseAccount(config.TokenMint)
	if err != nil {
		fatalf("token_mint: %v", err)
	}
	programID, err := ledger.ParseAccount(config.ProgramID)
	if err != nil {
		fatalf("program_id: %v", err)
	}
	policy, err := confirmPolicy(config.Confirm)
	if err != nil {
		fatalf("confirm: %v", err)
	}
	fmt.Printf("Cluster: %s (%s)\n", config.Cluster, config.RPCURL)
	fmt.Println("--------------------------------------------")

	protection := security.Harden()
	if protection.CoreDumpsDisabled {
		fmt.Println("✓ Core dumps disabled")
	} else {
		fmt.Println("⚠️  Core dumps could not be disabled")
	}
	if protection.MemoryLocked {
		fmt.Println("✓ Memory locked (keys will not swap to disk)")
	} else {
		fmt.Println("⚠️  Memory not locked (server key may be swapped to disk)")
	}

	serverKey, sealed, err := ledger.LoadKeypair(config.ServerKeypair, func() ([]byte, error) {
		return util.ObtainPassphrase(config.PassphraseCommandCfg(), "Server keypair passphrase: ")
	})
	if err != nil {
		fatalf("failed to load server keypair: %v", err)
	}
	if sealed {
		fmt.Printf("✓ Server keypair unsealed from %s\n", config.ServerKeypair)
	} else {
		fmt.Printf("⚠️  Server keypair %s is not sealed (use 'upkey seal')\n", config.ServerKeypair)
	}

	var authenticator auth.Authenticator = auth.OpenAuthenticator{}
	if config.AuthRequired() {
		apiToken, err := util.LoadServerToken(resolvedDataDir)
		if err != nil {
			fatalf("failed to load API token: %v", err)
		}
		authenticator = auth.NewTokenAuthenticator(apiToken)
	} else {
		fmt.Println("⚠️  require_auth is false: transfer and mint endpoints are open")
	}
	authorizer := auth.NewActionAuthorizer(!config.AuthRequired())

	auditLog, err := NewAuditLogger(config.AuditLog)
	if err != nil {
		fmt.Printf("Warning: Failed to initialize audit log: %v\n", err)
	} else {
		fmt.Printf("✓ Audit logging enabled (%s)\n", config.AuditLog)
	}

	store, content, err := openContentStore(config.ContentStore)
	if err != nil {
		fatalf("content store: %v", err)
	}
	fmt.Printf("✓ Content store: %s\n", config.ContentStore.Kind)

	catalog, err := nft.NewCatalog(config.ImageCatalog)
	if err != nil {
		fatalf("image catalog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if catalog.Path() != "" {
		err := startCatalogWatcher(ctx, catalog, func(count int, err error) {
			if err != nil {
				fmt.Printf("⚠️  Error reloading image catalog: %v\n", err)
				auditLog.LogCatalogReload(count, err.Error())
				return
			}
			util.Logger.Info("image catalog reloaded", "ranks", count)
			auditLog.LogCatalogReload(count, "")
		})
		if err != nil {
			fmt.Printf("⚠️  Catalog hot reload disabled: %v\n", err)
		} else {
			fmt.Println("✓ File watcher enabled - image catalog will auto-reload")
		}
	}

	program := txbuild.Program{ID: programID}
	submitter := ledger.NewSubmitter(ledger.NewRPCClient(config.RPCURL), policy)

	server := &Server{
		custody: custody.New(submitter, serverKey, custody.Config{
			Mint:     mint,
			Decimals: uint8(config.TokenDecimals),
			Program:  program,
			Cluster:  config.Cluster,
		}),
		nfts: nft.New(submitter, serverKey, store, nft.Config{
			Program:       program,
			Cluster:       config.Cluster,
			DefaultSymbol: config.NFTDefaultSymbol,
		}),
		catalog:       catalog,
		content:       content,
		authenticator: authenticator,
		authorizer:    authorizer,
		auditLog:      auditLog,
		metrics:       NewMetrics(),
		limiter:       newRateLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst),
		info: protocol.InfoResponse{
			ServerAddress: serverKey.PublicKey().String(),
			TokenMint:     mint.String(),
			TokenDecimals: uint8(config.TokenDecimals),
			ProgramID:     programID.String(),
			Cluster:       config.Cluster,
		},
		uploadLimit: config.UploadLimitBytes(),
	}

	auditLog.LogServerStart(serverKey.PublicKey().String())

	fmt.Printf("\n>> Starting Uptention server on port %d\n", config.ListenPort)
	fmt.Printf(">> Server wallet: %s\n", serverKey.PublicKey())
	fmt.Printf(">> Token mint:    %s (%d decimals)\n", mint, config.TokenDecimals)
	fmt.Printf(">> Image ranks:   %s\n", strings.Join(catalog.Ranks(), ", "))
	fmt.Printf("\nEndpoints:\n")
	fmt.Printf("  POST   %-22s - Transfer reward tokens to a wallet\n", protocol.PathTokenTransfer)
	fmt.Printf("  POST   %-22s - Mint an NFT from an uploaded image\n", protocol.PathNFTCreate)
	fmt.Printf("  POST   %-22s - Mint an NFT from a catalog rank\n", protocol.PathNFTCreateWithURI)
	fmt.Printf("  POST   %-22s - Transfer an NFT to a wallet\n", protocol.PathNFTTransfer)
	fmt.Printf("  GET    %-22s - Server wallet and token details\n", protocol.PathInfo)
	fmt.Printf("  GET    %-22s - Health check\n", protocol.PathHealth)
	fmt.Printf("  GET    %-22s - Prometheus metrics\n", protocol.PathMetrics)
	if content != nil {
		fmt.Printf("  GET    %-22s - Published NFT content\n", storage.ContentPathPrefix+"<id>")
	}
	fmt.Println(strings.Repeat("=", 50))

	httpServer := &http.Server{
		Addr:              config.ListenAddress(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second, // Prevent SlowLoris attacks
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		fmt.Println("\n[*] Shutdown signal received, cleaning up...")
	case err := <-serverErr:
		fmt.Fprintf(os.Stderr, "Error: HTTP server failed: %v\n", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Warning: HTTP server shutdown: %v\n", err)
	}

	auditLog.LogServerStop()
	_ = auditLog.Close()

	crypto.ZeroBytes(serverKey)
	fmt.Println("[✓] Shutdown complete")
}
