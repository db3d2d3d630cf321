// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/crypto"
	"github.com/uptention/uptention/internal/ledger"
	"github.com/uptention/uptention/internal/util"
	"github.com/uptention/uptention/internal/version"
)

// passphraseSource supplies the passphrase for sealing. Replaced in tests.
var passphraseSource = util.ConfirmPassphrase

// unsealSource supplies the passphrase of an existing sealed file.
var unsealSource ledger.PassphraseFunc = func() ([]byte, error) {
	return util.ObtainPassphrase(nil, "Keypair passphrase: ")
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Printf("upkey %s\n", version.String())
			os.Exit(0)
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "upkey - Server keypair management\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  upkey generate <path> [-seal]\n")
		fmt.Fprintf(os.Stderr, "  upkey pubkey <path>\n")
		fmt.Fprintf(os.Stderr, "  upkey seal <in> <out>\n")
		fmt.Fprintf(os.Stderr, "\nThe passphrase is read from %s or the terminal.\n", util.PassphraseEnv)
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  upkey generate server-keypair.json -seal\n")
		fmt.Fprintf(os.Stderr, "  upkey seal id.json server-keypair.json\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "generate":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: upkey generate <path> [-seal]\n")
			os.Exit(1)
		}
		seal := len(args) > 2 && (args[2] == "-seal" || args[2] == "--seal")
		err = cmdGenerate(args[1], seal)

	case "pubkey":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: upkey pubkey <path>\n")
			os.Exit(1)
		}
		err = cmdPubkey(args[1])

	case "seal":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: upkey seal <in> <out>\n")
			os.Exit(1)
		}
		err = cmdSeal(args[1], args[2])

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// writeNew writes data with mode 0600, refusing to replace an existing file.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// encode renders key, sealed with a fresh passphrase when seal is set.
func encode(key solana.PrivateKey, seal bool) ([]byte, error) {
	plain, err := ledger.EncodeKeypair(key)
	if err != nil {
		return nil, err
	}
	if !seal {
		return plain, nil
	}
	defer crypto.ZeroBytes(plain)

	pass, err := passphraseSource()
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(pass)
	return crypto.SealWithPassphrase(plain, pass)
}

func cmdGenerate(path string, seal bool) error {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	defer crypto.ZeroBytes(key)

	data, err := encode(key, seal)
	if err != nil {
		return err
	}
	if err := writeNew(path, data); err != nil {
		return err
	}
	state := "plain"
	if seal {
		state = "sealed"
	}
	fmt.Printf("✓ Wrote %s keypair to %s\n", state, path)
	fmt.Printf("Public key: %s\n", key.PublicKey())
	return nil
}

func cmdPubkey(path string) error {
	key, _, err := ledger.LoadKeypair(path, unsealSource)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(key)
	fmt.Println(key.PublicKey())
	return nil
}

func cmdSeal(in, out string) error {
	key, sealed, err := ledger.LoadKeypair(in, nil)
	if sealed {
		return fmt.Errorf("%s is already sealed", in)
	}
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(key)

	data, err := encode(key, true)
	if err != nil {
		return err
	}
	if err := writeNew(out, data); err != nil {
		return err
	}
	fmt.Printf("✓ Sealed %s to %s\n", key.PublicKey(), out)
	fmt.Printf("  Remove the plain copy once the sealed file is verified: upkey pubkey %s\n", out)
	return nil
}
