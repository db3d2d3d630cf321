// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import "strings"

// ParseCommand splits a line into a command name and arguments.
// Double quotes group words; the quotes themselves are dropped.
func ParseCommand(input string) (string, []string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoted := false // current token came from quotes, keep it even if empty

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch ch {
		case '"':
			inQuotes = !inQuotes
			quoted = true
		case ' ', '\t':
			if inQuotes {
				current.WriteByte(ch)
				continue
			}
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}
