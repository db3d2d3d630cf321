// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds linkshell configuration settings
type Config struct {
	Cluster      string `yaml:"cluster" description:"Cluster passed to the wallet (devnet, testnet, mainnet-beta)" default:"devnet"`
	RPCURL       string `yaml:"rpc_url" description:"JSON-RPC endpoint" default:"https://api.devnet.solana.com"`
	WSURL        string `yaml:"ws_url" description:"WebSocket endpoint for balance updates" default:"wss://api.devnet.solana.com/"`
	Platform     string `yaml:"platform" description:"Wallet link style (android or ios)" default:"android"`
	AppURL       string `yaml:"app_url" description:"App URL shown by the wallet" default:"https://uptention.app"`
	RedirectLink string `yaml:"redirect_link" description:"Base of the callback links the wallet opens" default:"uptention://"`
	TokenMint    string `yaml:"token_mint" description:"Reward token mint for sendtoken and balance"`
	Cooldown     string `yaml:"cooldown" description:"Minimum spacing between wallet requests" default:"3s"`

	// Command used to hand a URL to the wallet; the URL is appended as the last argument
	OpenCommand []string `yaml:"open_command" description:"Command that opens a wallet URL (empty = print only)"`

	Refresh RetryConfig `yaml:"refresh" description:"Balance re-polling after a confirmed transfer"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		Cluster:      "devnet",
		RPCURL:       "https://api.devnet.solana.com",
		WSURL:        "wss://api.devnet.solana.com/",
		Platform:     "android",
		AppURL:       "https://uptention.app",
		RedirectLink: "uptention://",
		Cooldown:     "3s",
		Refresh:      RetryConfig{MaxAttempts: 5, Delay: "2s", Backoff: 1.5, MaxDelay: "10s"},
	}
}

// DefaultClientDataDir is the default data directory for linkshell
const DefaultClientDataDir = "~/.uptention"

// GetClientDataDir returns the data directory for linkshell.
// Resolution order: -d flag > UPTENTION_CLIENT_DATA env var > ~/.uptention
func GetClientDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv("UPTENTION_CLIENT_DATA"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".uptention")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads configuration from config.yaml in the data directory.
// If dataDir is empty or the file doesn't exist, returns default config.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}
	// A relative binary path is resolved against the data directory; bare
	// names are left to $PATH lookup
	if len(config.OpenCommand) > 0 && strings.ContainsRune(config.OpenCommand[0], filepath.Separator) {
		config.OpenCommand[0] = ResolvePath(config.OpenCommand[0], dataDir)
	}
	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		_, _ = fmt.Fprintf(os.Stderr, "Warning: Failed to read config file: %v\n", err)
		return DefaultConfig(), nil
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	switch config.Platform {
	case "android", "ios":
	default:
		return Config{}, fmt.Errorf("invalid platform '%s' in config (must be android or ios)", config.Platform)
	}
	if _, err := config.CooldownDuration(); err != nil {
		return Config{}, err
	}
	if _, _, err := config.Refresh.Durations(); err != nil {
		return Config{}, fmt.Errorf("refresh: %w", err)
	}
	if config.Refresh.MaxAttempts <= 0 {
		config.Refresh.MaxAttempts = DefaultConfig().Refresh.MaxAttempts
	}
	return config, nil
}

// CooldownDuration parses the cooldown setting.
func (c *Config) CooldownDuration() (time.Duration, error) {
	return parseDuration("cooldown", c.Cooldown)
}

// DisplayConfig prints the current configuration
func DisplayConfig(dataDir string) {
	config, err := LoadConfig(dataDir)

	fmt.Println("Current Configuration:")
	fmt.Println("=====================")
	fmt.Printf("Data dir:    %s\n", dataDir)
	fmt.Printf("Config file: %s\n", GetConfigPath(dataDir))
	if err != nil {
		fmt.Printf("Error:       %v\n", err)
		fmt.Println()
		return
	}
	fmt.Printf("Cluster:     %s\n", config.Cluster)
	fmt.Printf("RPC:         %s\n", config.RPCURL)
	fmt.Printf("Platform:    %s\n", config.Platform)
	fmt.Printf("Redirect:    %s\n", config.RedirectLink)
	if config.TokenMint != "" {
		fmt.Printf("Token mint:  %s\n", config.TokenMint)
	} else {
		fmt.Printf("Token mint:  (not configured)\n")
	}
	fmt.Printf("Cooldown:    %s\n", config.Cooldown)
	if len(config.OpenCommand) > 0 {
		fmt.Printf("Open with:   %v\n", config.OpenCommand)
	} else {
		fmt.Printf("Open with:   (print link only)\n")
	}
	fmt.Println()
}
