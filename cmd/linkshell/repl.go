// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/uptention/uptention/internal/walletlink"
)

func (s *Shell) prompt() string {
	state := walletlink.StateDisconnected
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	if st, err := s.ctrl.Status(ctx); err == nil {
		state = st.State
	}
	return stateStyle(state).Render(s.config.Cluster+"/"+state.String()) + "> "
}

func newCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		name, _, _ := strings.Cut(c.usage, " ")
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// run executes one input line. It reports whether the loop should stop.
func (s *Shell) run(line string) bool {
	name, args := ParseCommand(line)
	if name == "" {
		return false
	}
	if err := s.Execute(name, args); err != nil {
		if errors.Is(err, errExit) {
			return true
		}
		s.printf("%s\n", errStyle.Render("Error: "+err.Error()))
	}
	return false
}

func startBasicREPL(s *Shell) {
	fmt.Println("Running in basic mode (no history/completion)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(s.prompt())
		if !scanner.Scan() {
			break
		}
		if s.run(scanner.Text()) {
			break
		}
	}
}

func startREPL(s *Shell, dataDir string) {
	fmt.Println(titleStyle.Render("linkshell - Uptention wallet shell"))
	fmt.Println("Type 'help' for available commands or 'quit' to exit")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.prompt(),
		HistoryFile:       filepath.Join(dataDir, "linkshell_history"),
		HistoryLimit:      1000,
		AutoComplete:      newCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Printf("Failed to create readline instance, falling back to basic input: %v\n", err)
		startBasicREPL(s)
		return
	}
	defer func() {
		_ = rl.Close()
	}()

	// Transfer notices arrive between prompts; route them through readline
	// so the input line is redrawn.
	s.SetOutput(rl.Stdout())
	defer s.SetOutput(os.Stdout)

	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					fmt.Println("Use 'quit' or 'exit' to exit")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if s.run(line) {
			break
		}
	}
}
