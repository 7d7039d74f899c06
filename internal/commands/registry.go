// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"sort"
)

// ErrQuit is returned by a handler to end the session.
var ErrQuit = errors.New("quit")

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Invocation is one parsed call of a command.
type Invocation struct {
	// Name is the name as typed, which may be an alias.
	Name string

	// Args are the arguments split on whitespace, honoring quotes.
	Args []string

	// RawArgs is everything after the command name, unsplit.
	RawArgs string
}

// Arg returns argument i, or "" when absent.
func (inv Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Handler runs a command.
type Handler func(ctx context.Context, inv Invocation) error

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/open <n|id>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	// Name of the argument
	Name string

	// Required indicates if the argument must be provided
	Required bool

	// Type determines completion behavior
	Type ArgType

	// Description explains the argument
	Description string

	// Values for enum types
	Values []string

	// Completer for custom completion
	Completer func() []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeSession                // Chat number or session id
	ArgTypeFile                   // File path
	ArgTypeEnum                   // One of predefined values
	ArgTypeVoice                  // Installed speech voice
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category, each group
// sorted by name.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute validates the parsed arguments and runs the command's handler.
func (r *Registry) Execute(ctx context.Context, res ParseResult) error {
	if res.Command == nil {
		return &ValidationError{Command: res.CommandName, Message: "unknown command"}
	}
	if err := ValidateArgs(res.Command, res.Args); err != nil {
		return err
	}
	if res.Command.Handler == nil {
		return nil
	}
	return res.Command.Handler(ctx, Invocation{
		Name:    res.CommandName,
		Args:    res.Args,
		RawArgs: res.RawArgs,
	})
}
