// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const maxAuditLogSize = 10 * 1024 * 1024 // 10 MB

const (
	AuditTransferRequest   AuditEventType = "TRANSFER_REQUEST"
	AuditTransferConfirmed AuditEventType = "TRANSFER_CONFIRMED"
	AuditTransferFailed    AuditEventType = "TRANSFER_FAILED"
	AuditNFTMinted         AuditEventType = "NFT_MINTED"
	AuditNFTTransferred    AuditEventType = "NFT_TRANSFERRED"
	AuditAuthFailed        AuditEventType = "AUTH_FAILED"
	AuditRateLimited       AuditEventType = "RATE_LIMITED"
	AuditServerStart       AuditEventType = "SERVER_START"
	AuditServerStop        AuditEventType = "SERVER_STOP"
	AuditCatalogReload     AuditEventType = "CATALOG_RELOAD"
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Event      AuditEventType `json:"event"`
	RequestID  string         `json:"request_id,omitempty"`
	Principal  string         `json:"principal,omitempty"`   // Authenticated identity
	Operation  string         `json:"operation,omitempty"`   // Endpoint action
	Recipient  string         `json:"recipient,omitempty"`   // Destination wallet
	Mint       string         `json:"mint,omitempty"`        // Token or NFT mint
	Amount     string         `json:"amount,omitempty"`      // Display units as requested
	Signature  string         `json:"signature,omitempty"`   // Transaction signature
	RemoteAddr string         `json:"remote_addr,omitempty"` // Client address
	Reason     string         `json:"reason,omitempty"`      // Failure reason
	Count      int            `json:"count,omitempty"`       // Catalog entries
}

// AuditLogger handles append-only audit logging
type AuditLogger struct {
	file    *os.File
	mu      sync.Mutex
	path    string
	written uint64
}

func openAuditFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// NewAuditLogger opens path for appending, creating it with mode 0600.
func NewAuditLogger(path string) (*AuditLogger, error) {
	file, err := openAuditFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	var written uint64
	if info, err := file.Stat(); err == nil {
		written = uint64(info.Size())
	}
	return &AuditLogger{file: file, path: path, written: written}, nil
}

// Log writes an audit entry as one JSON line and syncs it to disk.
// A nil logger discards the entry.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to marshal audit entry: %v\n", err)
		return
	}

	line := append(data, '\n')
	if a.written+uint64(len(line)) > maxAuditLogSize {
		if err := a.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to rotate audit log: %v\n", err)
		}
	}
	if _, err := a.file.Write(line); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write audit entry: %v\n", err)
		return
	}
	a.written += uint64(len(line))
	_ = a.file.Sync()
}

// rotate moves the log to <path>.1 and starts a fresh file.
// Must be called with a.mu held.
func (a *AuditLogger) rotate() error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	renameErr := os.Rename(a.path, a.path+".1")
	file, err := openAuditFile(a.path)
	if err != nil {
		return fmt.Errorf("open new log: %w", err)
	}
	a.file = file
	a.written = 0
	if renameErr != nil {
		return fmt.Errorf("rename log: %w", renameErr)
	}
	return nil
}

// Close closes the audit log file
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

func (a *AuditLogger) LogAuthFailed(requestID, remoteAddr, reason string) {
	a.Log(AuditEntry{Event: AuditAuthFailed, RequestID: requestID, RemoteAddr: remoteAddr, Reason: reason})
}

func (a *AuditLogger) LogRateLimited(requestID, remoteAddr, operation string) {
	a.Log(AuditEntry{Event: AuditRateLimited, RequestID: requestID, RemoteAddr: remoteAddr, Operation: operation})
}

func (a *AuditLogger) LogServerStart(serverAddress string) {
	a.Log(AuditEntry{Event: AuditServerStart, Principal: serverAddress})
}

func (a *AuditLogger) LogServerStop() {
	a.Log(AuditEntry{Event: AuditServerStop})
}

func (a *AuditLogger) LogCatalogReload(count int, reason string) {
	a.Log(AuditEntry{Event: AuditCatalogReload, Count: count, Reason: reason})
}
