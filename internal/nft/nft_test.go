// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package nft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/ledger/ledgertest"
	"github.com/uptention/uptention/internal/storage"
	"github.com/uptention/uptention/internal/txbuild"
)

type upload struct {
	name, contentType string
	data              []byte
}

type memStore struct {
	mu      sync.Mutex
	uploads []upload
	err     error
}

func (s *memStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.uploads = append(s.uploads, upload{name, contentType, append([]byte(nil), data...)})
	return fmt.Sprintf("https://gateway.test/%d", len(s.uploads)), nil
}

type fixture struct {
	fake   *ledgertest.Ledger
	store  *memStore
	orch   *Orchestrator
	server solana.PrivateKey
	prog   txbuild.Program
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	progKey, _ := solana.NewRandomPrivateKey()
	f := &fixture{
		fake:   ledgertest.New(),
		store:  &memStore{},
		server: server,
		prog:   txbuild.Program{ID: progKey.PublicKey()},
	}
	sub := ledger.NewSubmitter(f.fake, ledger.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond})
	f.orch = New(sub, server, f.store, Config{Program: f.prog, Cluster: "devnet"})
	return f
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"valid", Metadata{Name: "Gold", Description: "Rank 1"}, false},
		{"with attributes", Metadata{Name: "Gold", Description: "d", Attributes: []json.RawMessage{json.RawMessage(`{"trait_type":"rank","value":1}`)}}, false},
		{"missing name", Metadata{Description: "d"}, true},
		{"blank description", Metadata{Name: "n", Description: "  "}, true},
		{"long name", Metadata{Name: strings.Repeat("n", MaxNameLength+1), Description: "d"}, true},
		{"long symbol", Metadata{Name: "n", Description: "d", Symbol: "TOOLONGSYMB"}, true},
		{"scalar attribute", Metadata{Name: "n", Description: "d", Attributes: []json.RawMessage{json.RawMessage(`7`)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMetadata) {
				t.Fatalf("error %v is not ErrInvalidMetadata", err)
			}
		})
	}
}

func TestParseMetadata_Malformed(t *testing.T) {
	if _, err := ParseMetadata([]byte(`{"name":`)); !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("error = %v, want ErrInvalidMetadata", err)
	}
}

func TestCatalog_Defaults(t *testing.T) {
	c, err := NewCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	for _, rank := range []string{"1", "2", "3"} {
		ref, err := c.Lookup(rank)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", rank, err)
		}
		if !strings.HasPrefix(ref.URI, "https://gateway.irys.xyz/") || ref.ContentType != "image/png" {
			t.Fatalf("rank %s = %+v", rank, ref)
		}
	}
	if _, err := c.Lookup("4"); !errors.Is(err, ErrUnknownRank) {
		t.Fatalf("Lookup(4) error = %v, want ErrUnknownRank", err)
	}
}

func TestCatalog_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	write := func(body string) {
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	write("images:\n  \"4\":\n    uri: https://img.test/4.png\n")

	c, err := NewCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := c.Lookup("4")
	if err != nil || ref.ContentType != "image/png" {
		t.Fatalf("Lookup(4) = %+v, %v", ref, err)
	}
	if got := c.Ranks(); len(got) != 4 {
		t.Fatalf("ranks = %v", got)
	}

	write("images:\n  \"4\":\n    uri: \"\"\n")
	if err := c.Reload(); err == nil {
		t.Fatal("expected error for entry without uri")
	}
	if _, err := c.Lookup("4"); err != nil {
		t.Fatal("failed reload must keep the previous entries")
	}
}

func TestCreateFromUpload(t *testing.T) {
	f := newFixture(t)
	meta := Metadata{Name: "Gold", Description: "Monthly top focus"}
	img := Image{Data: []byte("\x89PNG"), ContentType: "image/png", FileName: "gold.png"}

	res, err := f.orch.CreateFromUpload(context.Background(), meta, img)
	if err != nil {
		t.Fatalf("CreateFromUpload: %v", err)
	}

	if len(f.store.uploads) != 2 {
		t.Fatalf("uploads = %d, want image + metadata", len(f.store.uploads))
	}
	if f.store.uploads[0].name != "gold.png" || f.store.uploads[1].contentType != "application/json" {
		t.Fatalf("unexpected uploads %+v", f.store.uploads)
	}
	if res.ImageURI != "https://gateway.test/1" || res.MetadataURI != "https://gateway.test/2" {
		t.Fatalf("uris = %s, %s", res.ImageURI, res.MetadataURI)
	}

	var published map[string]any
	if err := json.Unmarshal(f.store.uploads[1].data, &published); err != nil {
		t.Fatal(err)
	}
	if published["symbol"] != DefaultSymbol || published["image"] != res.ImageURI {
		t.Fatalf("published metadata = %v", published)
	}
	if attrs, ok := published["attributes"].([]any); !ok || len(attrs) != 0 {
		t.Fatalf("attributes = %v, want []", published["attributes"])
	}
	props := published["properties"].(map[string]any)
	if props["category"] != "image" {
		t.Fatalf("properties = %v", props)
	}

	sent := f.fake.SentTransactions()
	if len(sent) != 1 {
		t.Fatalf("sent %d transactions", len(sent))
	}
	tx := sent[0]
	if len(tx.Signatures) != 2 {
		t.Fatalf("signatures = %d, want server + mint", len(tx.Signatures))
	}
	mint := solana.MustPublicKeyFromBase58(res.MintAddress)
	found := false
	for _, k := range tx.Message.AccountKeys {
		if k.Equals(mint) {
			found = true
		}
	}
	if !found {
		t.Fatal("mint account missing from transaction")
	}
	inst := tx.Message.Instructions[0]
	d := txbuild.Discriminator("create_nft")
	if !tx.Message.AccountKeys[inst.ProgramIDIndex].Equals(f.prog.ID) || string(inst.Data[:8]) != string(d[:]) {
		t.Fatal("transaction does not call create_nft")
	}
	if res.ExplorerURL != ledger.ExplorerURL(res.Signature, "devnet") {
		t.Fatalf("explorer = %s", res.ExplorerURL)
	}
}

func TestCreate_ValidationSkipsUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.CreateFromUpload(ctx, Metadata{Description: "no name"}, Image{Data: []byte{1}}); !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("error = %v, want ErrInvalidMetadata", err)
	}
	if _, err := f.orch.CreateFromUpload(ctx, Metadata{Name: "n", Description: "d"}, Image{}); !errors.Is(err, ErrMissingImage) {
		t.Fatalf("error = %v, want ErrMissingImage", err)
	}
	if len(f.store.uploads) != 0 || f.fake.TotalCalls() != 0 {
		t.Fatal("validation failure reached storage or ledger")
	}
}

func TestCreateFromKnownURI(t *testing.T) {
	f := newFixture(t)
	c, _ := NewCatalog("")
	ref, _ := c.Lookup("2")

	res, err := f.orch.CreateFromKnownURI(context.Background(), Metadata{Name: "Silver", Symbol: "UPT", Description: "d"}, ref)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.store.uploads) != 1 {
		t.Fatalf("uploads = %d, want metadata only", len(f.store.uploads))
	}
	if res.ImageURI != ref.URI || res.Metadata.Symbol != "UPT" {
		t.Fatalf("result = %+v", res)
	}
	if res.Metadata.Properties.Files[0].Type != "image/png" {
		t.Fatalf("files = %+v", res.Metadata.Properties.Files)
	}
}

func TestCreate_UploadFailureSkipsLedger(t *testing.T) {
	f := newFixture(t)
	f.store.err = storage.ErrUploadFailed

	_, err := f.orch.CreateFromUpload(context.Background(), Metadata{Name: "n", Description: "d"}, Image{Data: []byte{1}, ContentType: "image/png"})
	if !errors.Is(err, storage.ErrUploadFailed) {
		t.Fatalf("error = %v", err)
	}
	if f.fake.TotalCalls() != 0 {
		t.Fatal("failed upload reached the ledger")
	}
}

func TestTransfer_SingleTransaction(t *testing.T) {
	f := newFixture(t)
	mintKey, _ := solana.NewRandomPrivateKey()
	recipient, _ := solana.NewRandomPrivateKey()

	res, err := f.orch.Transfer(context.Background(), mintKey.PublicKey().String(), recipient.PublicKey().String())
	if err != nil {
		t.Fatal(err)
	}
	sent := f.fake.SentTransactions()
	if len(sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(sent))
	}
	msg := sent[0].Message
	if len(msg.Instructions) != 2 {
		t.Fatalf("instructions = %d, want create + send_nft", len(msg.Instructions))
	}
	if !msg.AccountKeys[msg.Instructions[0].ProgramIDIndex].Equals(txbuild.AssociatedTokenProgramID) {
		t.Fatal("first instruction is not the idempotent account create")
	}
	d := txbuild.Discriminator("send_nft")
	if string(msg.Instructions[1].Data) != string(d[:]) {
		t.Fatal("second instruction is not send_nft")
	}
	want, _ := txbuild.AssociatedTokenAddress(recipient.PublicKey(), mintKey.PublicKey())
	if res.DestinationAccount != want.String() {
		t.Fatalf("destination = %s, want %s", res.DestinationAccount, want)
	}
}

func TestTransfer_InvalidInput(t *testing.T) {
	f := newFixture(t)
	good, _ := solana.NewRandomPrivateKey()
	tests := []struct {
		name, mint, recipient string
	}{
		{"bad recipient", good.PublicKey().String(), "xyz"},
		{"bad mint", "0OIl", good.PublicKey().String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Transfer(context.Background(), tt.mint, tt.recipient)
			if !errors.Is(err, ledger.ErrInvalidAddressFormat) {
				t.Fatalf("error = %v, want ErrInvalidAddressFormat", err)
			}
		})
	}
	if f.fake.TotalCalls() != 0 {
		t.Fatal("invalid input reached the ledger")
	}
}
