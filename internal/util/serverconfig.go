// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ContentStoreConfig selects where NFT images and metadata are published.
type ContentStoreConfig struct {
	Kind       string `yaml:"kind" description:"Content store backend (http or file)" default:"file"`
	UploadURL  string `yaml:"upload_url" description:"Upload endpoint for the http store"`
	GatewayURL string `yaml:"gateway_url" description:"Public gateway prefix for uploaded content" default:"https://gateway.irys.xyz"`
	Token      string `yaml:"token" description:"Bearer token for the upload endpoint"`
	Dir        string `yaml:"dir" description:"Content directory for the file store (relative to data dir)" default:"content"`
	PublicURL  string `yaml:"public_url" description:"Base URL the file store links content under" default:"http://localhost:11280"`
	Timeout    string `yaml:"timeout" description:"Upload timeout" default:"120s"`
}

// RetryConfig bounds a polling loop.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts" description:"Total attempts" default:"30"`
	Delay       string  `yaml:"delay" description:"Wait between attempts" default:"1s"`
	Backoff     float64 `yaml:"backoff" description:"Delay multiplier per attempt (1 = fixed)" default:"1.0"`
	MaxDelay    string  `yaml:"max_delay" description:"Upper bound on the grown delay (empty = none)"`
}

// RateLimitConfig throttles the money-moving endpoints per client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" description:"Sustained requests per second per client (0 = unlimited)" default:"2"`
	Burst             int     `yaml:"burst" description:"Burst size per client" default:"5"`
}

// ServerConfig represents the uptentiond configuration file
type ServerConfig struct {
	ListenPort  int    `yaml:"listen_port" description:"REST API port" default:"11280"`
	BindAddress string `yaml:"bind_address" description:"Interface to bind (empty = all interfaces)" default:"127.0.0.1"`

	// Ledger settings
	Cluster string `yaml:"cluster" description:"Cluster name used in explorer links (devnet, testnet, mainnet-beta)" default:"devnet"`
	RPCURL  string `yaml:"rpc_url" description:"JSON-RPC endpoint" default:"https://api.devnet.solana.com"`
	WSURL   string `yaml:"ws_url" description:"WebSocket endpoint" default:"wss://api.devnet.solana.com/"`

	ServerKeypair         string            `yaml:"server_keypair" description:"Server keypair file, plain JSON array or passphrase-sealed (relative to data dir)" default:"server-keypair.json"`
	PassphraseCommandArgv []string          `yaml:"passphrase_command_argv" description:"Command printing the keypair passphrase for headless start (paths resolved relative to data dir)"`
	PassphraseCommandEnv  map[string]string `yaml:"passphrase_command_env" description:"Environment variables for the passphrase command (process env is never inherited)"`

	TokenMint     string `yaml:"token_mint" description:"Mint of the reward token (required)"`
	TokenDecimals int    `yaml:"token_decimals" description:"Decimals of the reward token" default:"8"`
	ProgramID     string `yaml:"program_id" description:"Uptention program id (required)"`

	// NFT settings
	NFTDefaultSymbol string             `yaml:"nft_default_symbol" description:"Symbol used when a mint request names none" default:"UPNFT"`
	UploadLimitMB    int                `yaml:"upload_limit_mb" description:"Maximum nftImage upload size in MB" default:"10"`
	ImageCatalog     string             `yaml:"image_catalog" description:"YAML file mapping rank to image (empty = built-in ranks, relative to data dir)"`
	ContentStore     ContentStoreConfig `yaml:"content_store" description:"Where NFT images and metadata are published"`

	Confirm   RetryConfig     `yaml:"confirm" description:"Transaction confirmation polling"`
	RateLimit RateLimitConfig `yaml:"rate_limit" description:"Per-client rate limit on transfer and mint endpoints"`

	AuditLog    string `yaml:"audit_log" description:"Audit log file (relative to data dir)" default:"audit.log"`
	RequireAuth *bool  `yaml:"require_auth" description:"Require the API token on transfer and mint endpoints" default:"true"`
}

// ResolvePath resolves a path relative to baseDir if not absolute.
// Returns path unchanged if empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// DefaultServerConfig returns the default server configuration.
// Relative paths are resolved against the data directory ($UPTENTION_DATA).
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenPort:       DefaultRESTPort,
		BindAddress:      "127.0.0.1",
		Cluster:          "devnet",
		RPCURL:           "https://api.devnet.solana.com",
		WSURL:            "wss://api.devnet.solana.com/",
		ServerKeypair:    "server-keypair.json",
		TokenDecimals:    8,
		NFTDefaultSymbol: "UPNFT",
		UploadLimitMB:    10,
		ContentStore: ContentStoreConfig{
			Kind:       "file",
			GatewayURL: "https://gateway.irys.xyz",
			Dir:        "content",
			PublicURL:  fmt.Sprintf("http://localhost:%d", DefaultRESTPort),
			Timeout:    "120s",
		},
		Confirm:   RetryConfig{MaxAttempts: 30, Delay: "1s", Backoff: 1},
		RateLimit: RateLimitConfig{RequestsPerSecond: 2, Burst: 5},
		AuditLog:  "audit.log",
	}
}

// GetServerDataDir returns the data directory for uptentiond.
// It checks the -d flag value first, then UPTENTION_DATA.
// Returns empty string if neither is set.
func GetServerDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("UPTENTION_DATA")
}

// RequireServerDataDir resolves the server data directory from the flag
// value or UPTENTION_DATA. Exits if neither is set.
func RequireServerDataDir(flagValue string) string {
	dir := GetServerDataDir(flagValue)
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Error: Data directory not specified")
		fmt.Fprintln(os.Stderr, "Use -d <path> or set UPTENTION_DATA environment variable")
		os.Exit(1)
	}
	return dir
}

// LoadServerConfig loads <dataDir>/config.yaml over the defaults.
// A missing file yields the defaults; a malformed one is an error.
func LoadServerConfig(dataDir string) (ServerConfig, error) {
	config := DefaultServerConfig()
	if dataDir == "" {
		return config, nil
	}

	path := filepath.Join(dataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.resolvePaths(dataDir)
			return config, nil
		}
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Zero values written explicitly fall back to the defaults
	defaults := DefaultServerConfig()
	if config.ListenPort == 0 {
		config.ListenPort = defaults.ListenPort
	}
	if config.TokenDecimals == 0 {
		config.TokenDecimals = defaults.TokenDecimals
	}
	if config.NFTDefaultSymbol == "" {
		config.NFTDefaultSymbol = defaults.NFTDefaultSymbol
	}
	if config.UploadLimitMB <= 0 {
		config.UploadLimitMB = defaults.UploadLimitMB
	}
	if config.ContentStore.Kind == "" {
		config.ContentStore.Kind = defaults.ContentStore.Kind
	}
	if config.ContentStore.Timeout == "" {
		config.ContentStore.Timeout = defaults.ContentStore.Timeout
	}
	if config.Confirm.MaxAttempts <= 0 {
		config.Confirm.MaxAttempts = defaults.Confirm.MaxAttempts
	}
	if config.Confirm.Delay == "" {
		config.Confirm.Delay = defaults.Confirm.Delay
	}

	config.resolvePaths(dataDir)
	return config, config.Validate()
}

func (c *ServerConfig) resolvePaths(dataDir string) {
	c.ServerKeypair = ResolvePath(c.ServerKeypair, dataDir)
	c.ImageCatalog = ResolvePath(c.ImageCatalog, dataDir)
	c.ContentStore.Dir = ResolvePath(c.ContentStore.Dir, dataDir)
	c.AuditLog = ResolvePath(c.AuditLog, dataDir)
	for i := range c.PassphraseCommandArgv {
		c.PassphraseCommandArgv[i] = ResolvePath(c.PassphraseCommandArgv[i], dataDir)
	}
}

// Validate checks settings that have no usable default.
func (c *ServerConfig) Validate() error {
	if c.TokenDecimals < 0 || c.TokenDecimals > 18 {
		return fmt.Errorf("token_decimals %d out of range (0-18)", c.TokenDecimals)
	}
	switch c.ContentStore.Kind {
	case "file":
	case "http":
		if c.ContentStore.UploadURL == "" || c.ContentStore.GatewayURL == "" {
			return fmt.Errorf("content_store: upload_url and gateway_url are required for kind http")
		}
	default:
		return fmt.Errorf("content_store: unknown kind %q (must be http or file)", c.ContentStore.Kind)
	}
	if _, err := c.ContentStore.UploadTimeout(); err != nil {
		return err
	}
	if _, _, err := c.Confirm.Durations(); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	return nil
}

// AuthRequired reports whether the API token is enforced. Defaults to true.
func (c *ServerConfig) AuthRequired() bool {
	if c.RequireAuth == nil {
		return true
	}
	return *c.RequireAuth
}

// UploadLimitBytes returns the nftImage size cap.
func (c *ServerConfig) UploadLimitBytes() int64 {
	return int64(c.UploadLimitMB) << 20
}

// ListenAddress returns the host:port to listen on.
func (c *ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.ListenPort)
}

// PassphraseCommandCfg builds a PassphraseCommandConfig from the ServerConfig fields.
// Returns nil when no command is configured.
func (c *ServerConfig) PassphraseCommandCfg() *PassphraseCommandConfig {
	if len(c.PassphraseCommandArgv) == 0 {
		return nil
	}
	return &PassphraseCommandConfig{Argv: c.PassphraseCommandArgv, Env: c.PassphraseCommandEnv}
}

// UploadTimeout parses the content store timeout.
func (c ContentStoreConfig) UploadTimeout() (time.Duration, error) {
	return parseDuration("content_store.timeout", c.Timeout)
}

// Durations parses the delay fields of a retry block.
func (r RetryConfig) Durations() (delay, maxDelay time.Duration, err error) {
	if delay, err = parseDuration("delay", r.Delay); err != nil {
		return 0, 0, err
	}
	if maxDelay, err = parseDuration("max_delay", r.MaxDelay); err != nil {
		return 0, 0, err
	}
	return delay, maxDelay, nil
}

// parseDuration accepts "" and "0" as zero. Negative durations are rejected.
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration format: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q not supported", field, s)
	}
	return d, nil
}
