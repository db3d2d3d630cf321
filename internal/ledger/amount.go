// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// LamportDecimals is the number of decimals of the native asset (1 SOL = 1e9 lamports).
const LamportDecimals = 9

// ParseAmount converts a decimal display amount into atomic units.
// Fraction digits beyond decimals are truncated, never rounded. The result
// must be positive. Only plain decimal notation is accepted.
func ParseAmount(amount string, decimals uint8) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(amount, "-") {
		return 0, fmt.Errorf("%w: amount cannot be negative", ErrInvalidAmount)
	}

	integerPart, fractionalPart, hasDot := strings.Cut(amount, ".")
	if hasDot && strings.Contains(fractionalPart, ".") {
		return 0, fmt.Errorf("%w: multiple decimal points", ErrInvalidAmount)
	}
	if integerPart == "" && fractionalPart == "" {
		return 0, fmt.Errorf("%w: no digits in %q", ErrInvalidAmount, amount)
	}
	if !isDigits(integerPart) || !isDigits(fractionalPart) {
		return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, amount)
	}

	// e.g. "1.5" (8 dec) -> "1" + "50000000"; "1.123456789" (8 dec) -> "1" + "12345678"
	if len(fractionalPart) > int(decimals) {
		fractionalPart = fractionalPart[:decimals]
	}
	fractionalPart += strings.Repeat("0", int(decimals)-len(fractionalPart))

	units := strings.TrimLeft(integerPart+fractionalPart, "0")
	if units == "" {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}

	n, err := strconv.ParseUint(units, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, fmt.Errorf("%w: amount too large", ErrInvalidAmount)
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return n, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders atomic units with exactly decimals fraction digits.
func FormatAmount(units uint64, decimals uint8) string {
	s := strconv.FormatUint(units, 10)
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	return s[:len(s)-d] + "." + s[len(s)-d:]
}
