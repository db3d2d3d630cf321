// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/uptention/uptention/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
	UsedBy      string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	fmt.Fprintln(w, "# Configuration Reference")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## linkshell Configuration")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "File: `config.yaml` in linkshell data directory (`-d`, `UPTENTION_CLIENT_DATA` or `~/.uptention`)")
	fmt.Fprintln(w)
	printStructTable(w, reflect.TypeOf(util.Config{}))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## uptentiond Configuration")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "File: `config.yaml` in uptentiond data directory (`-d` or `UPTENTION_DATA`)")
	fmt.Fprintln(w)
	printStructTable(w, reflect.TypeOf(util.ServerConfig{}))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Environment Variables")
	fmt.Fprintln(w)
	printEnvVars(w)
}

func printStructTable(w io.Writer, t reflect.Type) {
	fmt.Fprintln(w, "| Field | Type | Default | Description |")
	fmt.Fprintln(w, "|-------|------|---------|-------------|")
	printFields(w, t, "")
}

func printFields(w io.Writer, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		fieldName := strings.Split(tag, ",")[0]
		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		desc := field.Tag.Get("description")
		if desc == "" {
			desc = "(no description)"
		}

		// Nested blocks are listed, then expanded with dotted names
		if field.Type.Kind() == reflect.Struct {
			fmt.Fprintf(w, "| `%s` | object | (none) | %s |\n", fieldName, desc)
			printFields(w, field.Type, fieldName)
			continue
		}

		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}

		fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", fieldName, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Map:
		return "map[" + formatType(t.Key()) + "]" + formatType(t.Elem())
	case reflect.Ptr:
		return formatType(t.Elem())
	default:
		return t.String()
	}
}

func printEnvVars(w io.Writer) {
	envVars := []EnvVar{
		{"UPTENTION_DATA", "Data directory for uptentiond (config, keypair, token, audit log)", "uptentiond"},
		{"UPTENTION_CLIENT_DATA", "Data directory for linkshell (config)", "linkshell"},
		{util.PassphraseEnv, "Passphrase of a sealed keypair (skips the prompt)", "uptentiond, upkey"},
		{"UPTENTION_NO_MLOCK", "Set to any value to disable memory locking (for debugging)", "uptentiond"},
		{"UPTENTION_DEBUG", "Set to any value to enable debug logging", "uptentiond, linkshell"},
	}

	fmt.Fprintln(w, "| Variable | Description | Used By |")
	fmt.Fprintln(w, "|----------|-------------|---------|")
	for _, env := range envVars {
		fmt.Fprintf(w, "| `%s` | %s | %s |\n", env.Name, env.Description, env.UsedBy)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Passphrase Precedence")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "For a sealed `server_keypair`, uptentiond reads the passphrase from:")
	fmt.Fprintf(w, "1. `%s` environment variable (highest priority)\n", util.PassphraseEnv)
	fmt.Fprintln(w, "2. `passphrase_command_argv` config option (headless mode)")
	fmt.Fprintln(w, "3. Interactive terminal prompt")
}
