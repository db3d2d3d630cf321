// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/uptention/uptention/internal/auth"
	"github.com/uptention/uptention/internal/custody"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/nft"
	"github.com/uptention/uptention/internal/protocol"
	"github.com/uptention/uptention/internal/storage"
	"github.com/uptention/uptention/internal/util"
)

// errBadRequest classifies malformed request bodies.
var errBadRequest = errors.New("bad request")

// maxJSONBody bounds the JSON request bodies.
const maxJSONBody = 64 * 1024

// Server serves the custodial REST API.
type Server struct {
	custody *custody.Orchestrator
	nfts    *nft.Orchestrator
	catalog *nft.Catalog
	content http.Handler // FileStore, nil for remote content stores

	authenticator auth.Authenticator
	authorizer    auth.Authorizer
	auditLog      *AuditLogger
	metrics       *Metrics
	limiter       *rateLimiter

	info        protocol.InfoResponse
	uploadLimit int64
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.PathTokenTransfer, s.route("token_transfer", http.MethodPost, true,
		s.requireAuth(auth.ActionTransferToken, s.handleTokenTransfer)))
	mux.HandleFunc(protocol.PathNFTCreate, s.route("nft_create", http.MethodPost, true,
		s.requireAuth(auth.ActionMintNFT, s.handleNFTCreate)))
	mux.HandleFunc(protocol.PathNFTCreateWithURI, s.route("nft_create_with_uri", http.MethodPost, true,
		s.requireAuth(auth.ActionMintNFT, s.handleNFTCreateWithURI)))
	mux.HandleFunc(protocol.PathNFTTransfer, s.route("nft_transfer", http.MethodPost, true,
		s.requireAuth(auth.ActionTransferNFT, s.handleNFTTransfer)))
	mux.HandleFunc(protocol.PathInfo, s.route("info", http.MethodGet, false,
		s.requireAuth(auth.ActionReadInfo, s.handleInfo)))
	mux.HandleFunc(protocol.PathHealth, s.route("health", http.MethodGet, false, s.handleHealth))
	if s.metrics != nil {
		mux.Handle(protocol.PathMetrics, s.metrics.Handler())
	}
	if s.content != nil {
		mux.Handle(storage.ContentPathPrefix, s.content)
	}
	return mux
}

// route applies the method check, request id, optional rate limit and
// instrumentation in that order.
func (s *Server) route(endpoint, method string, limited bool, next http.HandlerFunc) http.HandlerFunc {
	h := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		if limited && !s.limiter.Allow(r) {
			s.auditLog.LogRateLimited(id, r.RemoteAddr, endpoint)
			if s.metrics != nil {
				s.metrics.rateLimited.WithLabelValues(endpoint).Inc()
			}
			writeError(w, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		next(w, r)
	}
	if s.metrics == nil {
		return h
	}
	return s.metrics.Instrument(endpoint, h)
}

// requireAuth authenticates the request and checks the identity may
// perform action before calling next.
func (s *Server) requireAuth(action auth.Action, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			reason := "authentication_failed"
			if errors.Is(err, auth.ErrNoCredentials) {
				reason = "missing_credentials"
			} else if errors.Is(err, auth.ErrInvalidCredentials) {
				reason = "invalid_credentials"
			}
			s.auditLog.LogAuthFailed(requestID(r.Context()), r.RemoteAddr, reason)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := s.authorizer.Authorize(r.Context(), identity, action); err != nil {
			s.auditLog.LogAuthFailed(requestID(r.Context()), r.RemoteAddr, "unauthorized: "+string(action))
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		next(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	}
}

// statusForError maps a domain error to its HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAddressFormat),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, nft.ErrInvalidMetadata),
		errors.Is(err, nft.ErrMissingImage),
		errors.Is(err, nft.ErrUnknownRank),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrTransactionTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// failRequest logs err and writes the error response. A submitted
// transaction's signature is included so callers can re-query it.
func (s *Server) failRequest(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	resp := protocol.ErrorResponse{Success: false, Error: err.Error()}
	var txErr *ledger.TxError
	if errors.As(err, &txErr) {
		resp.Signature = txErr.Signature
	}
	if status >= 500 {
		util.Logger.Error("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	} else {
		util.Logger.Debug("request rejected", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// outcome labels an error for the operations metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ledger.ErrTransactionTimeout):
		return "timeout"
	case statusForError(err) == http.StatusBadRequest:
		return "rejected"
	default:
		return "failed"
	}
}

func (s *Server) observe(kind string, err error) {
	if s.metrics != nil {
		s.metrics.Operation(kind, outcome(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
