// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"unicode"
)

// =============================================================================
// PARSING
// =============================================================================

// ParseResult is one REPL line split into a command and its arguments.
type ParseResult struct {
	// IsCommand is set for lines starting with "/". Anything else is a
	// chat message.
	IsCommand bool

	// Command is the registered command, nil when the name is unknown.
	Command *Command

	// CommandName is the name as typed, e.g. "/o".
	CommandName string

	// Args are the quote-aware words after the name.
	Args []string

	// RawArgs is everything after the name, trimmed but otherwise untouched.
	// Titles and image paths with trailing text are read from here.
	RawArgs string
}

// Parser resolves lines against a registry.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser over registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse splits input. Command names match exactly first, then
// case-insensitively, so "/NEW" runs /new.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ParseResult{}
	}

	name := ExtractCommandName(input)
	res := ParseResult{
		IsCommand:   true,
		CommandName: name,
		RawArgs:     strings.TrimSpace(input[len(name):]),
	}
	if res.RawArgs != "" {
		res.Args = splitCommandLine(res.RawArgs)
	}

	res.Command = p.registry.Get(name)
	if res.Command == nil {
		res.Command = p.registry.Get(strings.ToLower(name))
	}
	return res
}

// ParseArgs splits input into words. Single or double quotes group words
// and a backslash escapes a quote inside them.
func ParseArgs(input string) []string {
	return splitCommandLine(input)
}

func splitCommandLine(input string) []string {
	var (
		words   []string
		word    strings.Builder
		quote   rune
		started bool
	)
	flush := func() {
		if started {
			words = append(words, word.String())
			word.Reset()
			started = false
		}
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case quote != 0 && ch == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			i++
			word.WriteRune(runes[i])
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
			started = true
		case quote == 0 && unicode.IsSpace(ch):
			flush()
		default:
			word.WriteRune(ch)
			started = true
		}
	}
	flush()
	return words
}

// IsCommand reports whether input is a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ExtractCommandName returns the first word of a slash command, or "" for
// a chat message.
func ExtractCommandName(input string) string {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ""
	}
	if end := strings.IndexFunc(input, unicode.IsSpace); end >= 0 {
		return input[:end]
	}
	return input
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateArgs checks required arguments and enum values against cmd.Args.
// Extra arguments are allowed.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "required argument missing", Expected: def.Description}
			}
			continue
		}
		if def.Type == ArgTypeEnum && len(def.Values) > 0 && !containsFold(def.Values, args[i]) {
			return &ValidationError{
				Command:  cmd.Name,
				Arg:      def.Name,
				Message:  "invalid value",
				Got:      args[i],
				Expected: strings.Join(def.Values, ", "),
			}
		}
	}
	return nil
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// ValidationError describes a rejected command line.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Command + ": " + e.Message)
	if e.Arg != "" {
		b.WriteString(" for argument '" + e.Arg + "'")
	}
	if e.Got != "" {
		b.WriteString(" (got: " + e.Got + ")")
	}
	if e.Expected != "" {
		b.WriteString(" - expected: " + e.Expected)
	}
	return b.String()
}
