// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/uptention/uptention/internal/util"
)

// WaitForConfirmation polls the signature status until it reaches target.
// A transaction that executed with an error yields ErrLedgerSubmission.
// When the policy is exhausted the outcome is unknown and ErrTransactionTimeout
// is returned; the caller must not resubmit.
func WaitForConfirmation(ctx context.Context, client Client, sig solana.Signature, target Commitment, policy RetryPolicy) error {
	var lastErr error
	err := policy.Do(ctx, func(attempt int) (bool, error) {
		status, err := client.SignatureStatus(ctx, sig)
		if err != nil {
			// Transient RPC failure: keep polling, the transaction may still land
			lastErr = err
			util.Debug("signature status query failed", "signature", sig.String(), "attempt", attempt, "error", err)
			return false, nil
		}
		if status == nil {
			return false, nil
		}
		if status.Err != "" {
			return false, &TxError{Signature: sig.String(), Reason: status.Err, Err: ErrLedgerSubmission}
		}
		return status.Confirmation.AtLeast(target), nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRetriesExhausted):
		reason := fmt.Sprintf("not %s after %d attempts", target, policy.MaxAttempts)
		if lastErr != nil {
			reason += fmt.Sprintf(" (last error: %v)", lastErr)
		}
		return &TxError{Signature: sig.String(), Reason: reason, Err: ErrTransactionTimeout}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &TxError{Signature: sig.String(), Reason: err.Error(), Err: ErrTransactionTimeout}
	default:
		return err
	}
}
