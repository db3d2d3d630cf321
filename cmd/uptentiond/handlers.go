// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/uptention/uptention/internal/auth"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/nft"
	"github.com/uptention/uptention/internal/protocol"
	"github.com/uptention/uptention/internal/version"
)

func principal(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return id.ID
	}
	return ""
}

// amountString accepts a JSON number or a JSON string holding a decimal.
func amountString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: amount is required", ledger.ErrInvalidAmount)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: amount must be a number or string", ledger.ErrInvalidAmount)
	}
	return plainDecimal(n.String())
}

// maxAmountExponent bounds the exponent of a JSON number amount. Anything
// larger overflows every mint anyway.
const maxAmountExponent = 64

// plainDecimal renders a JSON number (possibly in exponent form such as
// 1e-7) as an exact plain decimal string, without going through floats.
func plainDecimal(num string) (string, error) {
	if i := strings.IndexAny(num, "eE"); i >= 0 {
		exp, err := strconv.Atoi(strings.TrimPrefix(num[i+1:], "+"))
		if err != nil || exp > maxAmountExponent || exp < -maxAmountExponent {
			return "", fmt.Errorf("%w: %q is out of range", ledger.ErrInvalidAmount, num)
		}
	}
	r, ok := new(big.Rat).SetString(num)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a decimal number", ledger.ErrInvalidAmount, num)
	}
	if r.Sign() <= 0 {
		return "", fmt.Errorf("%w: amount must be greater than zero", ledger.ErrInvalidAmount)
	}
	// The denominator divides 10^k for k = fraction digits + |exponent|,
	// so this precision is exact.
	out := r.FloatString(len(num) + maxAmountExponent)
	if strings.Contains(out, ".") {
		out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	}
	return out, nil
}

func signatureOf(err error) string {
	var txErr *ledger.TxError
	if errors.As(err, &txErr) {
		return txErr.Signature
	}
	return ""
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, r *http.Request) {
	var req protocol.TokenTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.failRequest(w, r, err)
		return
	}
	amount, err := amountString(req.Amount)
	if err != nil {
		s.failRequest(w, r, err)
		return
	}

	entry := AuditEntry{
		RequestID:  requestID(r.Context()),
		Principal:  principal(r),
		Operation:  "token_transfer",
		Recipient:  req.RecipientAddress,
		Mint:       s.info.TokenMint,
		Amount:     amount,
		RemoteAddr: r.RemoteAddr,
	}
	entry.Event = AuditTransferRequest
	s.auditLog.Log(entry)

	res, err := s.custody.Transfer(r.Context(), req.RecipientAddress, amount)
	s.observe("token_transfer", err)
	if err != nil {
		entry.Event, entry.Reason, entry.Signature = AuditTransferFailed, err.Error(), signatureOf(err)
		s.auditLog.Log(entry)
		s.failRequest(w, r, err)
		return
	}
	entry.Event, entry.Signature = AuditTransferConfirmed, res.Signature
	s.auditLog.Log(entry)

	writeJSON(w, http.StatusOK, protocol.TransferResponse{
		Success:     true,
		Message:     fmt.Sprintf("Transferred %s tokens to %s", amount, req.RecipientAddress),
		Transaction: res.ExplorerURL,
		Signature:   res.Signature,
	})
}

// readNFTUpload extracts the metadata field and image file of a
// multipart create request. Metadata is checked before the image is read.
func (s *Server) readNFTUpload(w http.ResponseWriter, r *http.Request) (nft.Metadata, nft.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit+protocol.DefaultMultipartLimit)
	if err := r.ParseMultipartForm(protocol.DefaultMultipartLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: upload exceeds %d bytes", errBadRequest, s.uploadLimit)
		}
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err)
	}

	values := r.MultipartForm.Value[protocol.FormFieldNFTMetadata]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: %s field is required", nft.ErrInvalidMetadata, protocol.FormFieldNFTMetadata)
	}
	meta, err := nft.ParseMetadata([]byte(values[0]))
	if err != nil {
		return nft.Metadata{}, nft.Image{}, err
	}
	if err := meta.Validate(); err != nil {
		return nft.Metadata{}, nft.Image{}, err
	}

	file, header, err := r.FormFile(protocol.FormFieldNFTImage)
	if errors.Is(err, http.ErrMissingFile) {
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: %s file is required", nft.ErrMissingImage, protocol.FormFieldNFTImage)
	}
	if err != nil {
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer file.Close()

	if header.Size > s.uploadLimit {
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: image exceeds %d bytes", errBadRequest, s.uploadLimit)
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: %s must be an image, got %q", errBadRequest, protocol.FormFieldNFTImage, contentType)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nft.Metadata{}, nft.Image{}, fmt.Errorf("%w: read image: %v", errBadRequest, err)
	}
	return meta, nft.Image{Data: data, ContentType: contentType, FileName: header.Filename}, nil
}

func (s *Server) handleNFTCreate(w http.ResponseWriter, r *http.Request) {
	meta, img, err := s.readNFTUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.failRequest(w, r, err)
		return
	}
	res, err := s.nfts.CreateFromUpload(r.Context(), meta, img)
	s.finishMint(w, r, res, err)
}

func (s *Server) handleNFTCreateWithURI(w http.ResponseWriter, r *http.Request) {
	var req protocol.NFTCreateWithURIRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.failRequest(w, r, err)
		return
	}
	image, err := s.catalog.Lookup(req.Rank)
	if err != nil {
		s.failRequest(w, r, err)
		return
	}
	meta := nft.Metadata{
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		Attributes:  req.Attributes,
	}
	res, err := s.nfts.CreateFromKnownURI(r.Context(), meta, image)
	s.finishMint(w, r, res, err)
}

func (s *Server) finishMint(w http.ResponseWriter, r *http.Request, res *nft.MintResult, err error) {
	s.observe("nft_mint", err)
	if err != nil {
		if sig := signatureOf(err); sig != "" {
			s.auditLog.Log(AuditEntry{
				Event:      AuditTransferFailed,
				RequestID:  requestID(r.Context()),
				Principal:  principal(r),
				Operation:  "nft_mint",
				Signature:  sig,
				RemoteAddr: r.RemoteAddr,
				Reason:     err.Error(),
			})
		}
		s.failRequest(w, r, err)
		return
	}
	s.auditLog.Log(AuditEntry{
		Event:      AuditNFTMinted,
		RequestID:  requestID(r.Context()),
		Principal:  principal(r),
		Operation:  "nft_mint",
		Mint:       res.MintAddress,
		Signature:  res.Signature,
		RemoteAddr: r.RemoteAddr,
	})
	writeJSON(w, http.StatusCreated, protocol.MintResponse{
		Success:     true,
		Message:     "NFT created successfully",
		MintAddress: res.MintAddress,
		Transaction: res.ExplorerURL,
		Signature:   res.Signature,
		Details:     res,
	})
}

func (s *Server) handleNFTTransfer(w http.ResponseWriter, r *http.Request) {
	var req protocol.NFTTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.failRequest(w, r, err)
		return
	}

	entry := AuditEntry{
		RequestID:  requestID(r.Context()),
		Principal:  principal(r),
		Operation:  "nft_transfer",
		Recipient:  req.RecipientAddress,
		Mint:       req.NFTMintAddress,
		RemoteAddr: r.RemoteAddr,
	}
	entry.Event = AuditTransferRequest
	s.auditLog.Log(entry)

	res, err := s.nfts.Transfer(r.Context(), req.NFTMintAddress, req.RecipientAddress)
	s.observe("nft_transfer", err)
	if err != nil {
		entry.Event, entry.Reason, entry.Signature = AuditTransferFailed, err.Error(), signatureOf(err)
		s.auditLog.Log(entry)
		s.failRequest(w, r, err)
		return
	}
	entry.Event, entry.Signature = AuditNFTTransferred, res.Signature
	s.auditLog.Log(entry)

	writeJSON(w, http.StatusOK, protocol.TransferResponse{
		Success:     true,
		Message:     fmt.Sprintf("NFT %s transferred to %s", res.Mint, req.RecipientAddress),
		Transaction: res.ExplorerURL,
		Signature:   res.Signature,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:  "ok",
		Service: "uptentiond",
		Version: version.Current(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := s.info
	info.Ranks = s.catalog.Ranks()
	writeJSON(w, http.StatusOK, info)
}
