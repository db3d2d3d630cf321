// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package nft

import (
	"encoding/json"
	"fmt"
	"strings"
)

// On-chain metadata field limits of the token metadata program.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// DefaultSymbol is used when a request does not name a symbol.
const DefaultSymbol = "UPNFT"

// Metadata is the caller-supplied part of an NFT description.
type Metadata struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol,omitempty"`
	Description string            `json:"description"`
	Attributes  []json.RawMessage `json:"attributes,omitempty"`
}

// Validate checks required fields and on-chain length limits.
// The symbol is checked after defaulting.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	}
	if strings.TrimSpace(m.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidMetadata)
	}
	if len(m.Name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidMetadata, MaxNameLength)
	}
	if len(m.Symbol) > MaxSymbolLength {
		return fmt.Errorf("%w: symbol exceeds %d bytes", ErrInvalidMetadata, MaxSymbolLength)
	}
	for i, a := range m.Attributes {
		var obj map[string]any
		if err := json.Unmarshal(a, &obj); err != nil {
			return fmt.Errorf("%w: attribute %d is not an object", ErrInvalidMetadata, i)
		}
	}
	return nil
}

// ParseMetadata decodes a metadata JSON document and validates it.
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return m, m.Validate()
}

// Image is an uploaded image file.
type Image struct {
	Data        []byte
	ContentType string
	FileName    string
}

// ImageRef points at an already published image.
type ImageRef struct {
	URI         string `yaml:"uri" json:"uri"`
	ContentType string `yaml:"content_type" json:"type"`
}

// File is one entry of properties.files.
type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// Properties is the properties block of the published metadata.
type Properties struct {
	Files    []File `json:"files"`
	Category string `json:"category"`
}

// FinalMetadata is the JSON document published for an NFT.
type FinalMetadata struct {
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Attributes  []json.RawMessage `json:"attributes"`
	Properties  Properties        `json:"properties"`
}

// finalize combines m with its published image.
func finalize(m Metadata, defaultSymbol string, image ImageRef) FinalMetadata {
	symbol := m.Symbol
	if symbol == "" {
		symbol = defaultSymbol
	}
	attrs := m.Attributes
	if attrs == nil {
		attrs = []json.RawMessage{}
	}
	return FinalMetadata{
		Name:        m.Name,
		Symbol:      symbol,
		Description: m.Description,
		Image:       image.URI,
		Attributes:  attrs,
		Properties: Properties{
			Files:    []File{{URI: image.URI, Type: image.ContentType}},
			Category: "image",
		},
	}
}
