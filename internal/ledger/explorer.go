// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import "fmt"

// Cluster endpoints
const (
	DevnetRPC  = "https://api.devnet.solana.com"
	DevnetWS   = "wss://api.devnet.solana.com/"
	MainnetRPC = "https://api.mainnet-beta.solana.com"
)

// ExplorerURL links a signature on the public explorer for cluster.
func ExplorerURL(signature, cluster string) string {
	if cluster == "" || cluster == "mainnet-beta" {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", signature)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", signature, cluster)
}
