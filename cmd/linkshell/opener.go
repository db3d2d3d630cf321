// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/uptention/uptention/internal/walletlink"
)

const openTimeout = 10 * time.Second

// commandOpener hands links to an external command with the link as the
// last argument. With no command configured the link is only printed.
type commandOpener struct {
	argv []string
	out  io.Writer
}

func (o *commandOpener) Open(ctx context.Context, link string) error {
	fmt.Fprintf(o.out, "%s\n%s\n", dimStyle.Render("Wallet link:"), link)
	if len(o.argv) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	args := append(append([]string(nil), o.argv[1:]...), link)
	cmd := exec.CommandContext(ctx, o.argv[0], args...) // #nosec G204 - command comes from the user's own config
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s: %v %s", walletlink.ErrWalletUnavailable, o.argv[0], err, output)
	}
	return nil
}
