// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package nft

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultImages are the rank images published for the reward program.
var defaultImages = map[string]ImageRef{
	"1": {URI: "https://gateway.irys.xyz/Gxdtf2cbB8YQa6y4zZW3XZqAA17MVnfToVGMaAfzDqZc", ContentType: "image/png"},
	"2": {URI: "https://gateway.irys.xyz/CYp9UvjbDJBLhRE3KBMxqmETCcaNT9mfqScVRreqbPot", ContentType: "image/png"},
	"3": {URI: "https://gateway.irys.xyz/215o1LMXCX28KqXbFzmgpHKjZVLJiEQPz2LK7FnnCqKj", ContentType: "image/png"},
}

// catalogFile is the YAML layout of an image catalog:
//
//	images:
//	  "1":
//	    uri: https://...
//	    content_type: image/png
type catalogFile struct {
	Images map[string]ImageRef `yaml:"images"`
}

// Catalog maps ranks to predefined images. Safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	path   string
	images map[string]ImageRef
}

// NewCatalog returns a catalog holding the built-in rank images.
// When path is non-empty the file is loaded on top of them.
func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path, images: copyImages(defaultImages)}
	if path == "" {
		return c, nil
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func copyImages(src map[string]ImageRef) map[string]ImageRef {
	dst := make(map[string]ImageRef, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Path returns the catalog file, or "" for the built-in catalog.
func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the catalog file. On error the current entries stay.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read image catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse image catalog %s: %w", c.path, err)
	}

	images := copyImages(defaultImages)
	for rank, ref := range file.Images {
		if ref.URI == "" {
			return fmt.Errorf("image catalog %s: rank %q has no uri", c.path, rank)
		}
		if ref.ContentType == "" {
			ref.ContentType = "image/png"
		}
		images[rank] = ref
	}

	c.mu.Lock()
	c.images = images
	c.mu.Unlock()
	return nil
}

// Lookup returns the image for rank.
func (c *Catalog) Lookup(rank string) (ImageRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.images[rank]
	if !ok {
		return ImageRef{}, fmt.Errorf("%w: %q", ErrUnknownRank, rank)
	}
	return ref, nil
}

// Ranks lists the known ranks in order.
func (c *Catalog) Ranks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ranks := make([]string, 0, len(c.images))
	for r := range c.images {
		ranks = append(ranks, r)
	}
	sort.Strings(ranks)
	return ranks
}
