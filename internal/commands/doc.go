// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the chat prompt.
//
// Commands are registered with their handlers by the front-end. Input is
// parsed with quote-aware splitting, validated against each command's
// argument definitions and dispatched.
//
// # Key Types
//
//   - Registry: Commands by name and alias
//   - Command: Name, aliases, arguments and handler
//   - Parser: Splits input into a ParseResult
//   - Completer: Tab completion for commands and arguments
//
// # Usage
//
// Register and run a command:
//
//	reg := commands.NewRegistry()
//	reg.Register(&commands.Command{Name: "/new", Handler: newChat})
//	res := commands.NewParser(reg).Parse(input)
//	if res.IsCommand {
//	    return reg.Execute(ctx, res)
//	}
//
// Get completions:
//
//	lines := commands.NewCompleter(reg).Lines("/ne")
//	// Returns ["/new"]
package commands
