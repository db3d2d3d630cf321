// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUploadTimeout bounds a single upload.
const DefaultUploadTimeout = 120 * time.Second

// HTTPStore uploads to a bundler-style HTTP endpoint (an Irys node or a
// compatible gateway). The endpoint answers {"id": "<content id>"} and the
// content is then served at <GatewayURL>/<id>.
type HTTPStore struct {
	UploadURL  string
	GatewayURL string
	Token      string // Optional bearer token for the upload endpoint
	Client     *http.Client
}

// NewHTTPStore creates an HTTPStore with its own timeout-bounded client.
func NewHTTPStore(uploadURL, gatewayURL, token string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &HTTPStore{
		UploadURL:  uploadURL,
		GatewayURL: strings.TrimRight(gatewayURL, "/"),
		Token:      token,
		Client:     &http.Client{Timeout: timeout},
	}
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Put implements ContentStore.
func (s *HTTPStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-File-Name", name)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: %s", ErrUploadFailed, resp.Status, strings.TrimSpace(string(body)))
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil || out.ID == "" {
		return "", fmt.Errorf("%w: unexpected response %q", ErrUploadFailed, truncate(string(body), 200))
	}
	return s.GatewayURL + "/" + out.ID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
