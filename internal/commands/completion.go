// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/echoflow/internal/util"
)

// maxFileCompletions caps directory listings.
const maxFileCompletions = 20

// Completion is one candidate for the word being typed.
type Completion struct {
	// Value replaces the partial word.
	Value string

	// Display is shown in a candidate list.
	Display string

	// Description explains the candidate.
	Description string

	// Score ranks candidates; higher is better.
	Score int
}

// SessionInfo describes a chat for completion.
type SessionInfo struct {
	ID      string
	Title   string
	Preview string
}

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// Callbacks for dynamic completion, set by the chat front-end.
	SessionsFn func() []SessionInfo         // Returns chats, newest first
	VoicesFn   func() []string              // Returns voice URIs
	FilesFn    func(prefix string) []string // Returns matching files
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{
		registry: registry,
	}
}

// Complete returns completions for the given input at the cursor position.
func (c *Completer) Complete(input string, cursorPos int) []Completion {
	if cursorPos >= 0 && cursorPos < len(input) {
		input = input[:cursorPos]
	}
	input = strings.TrimLeft(input, " \t")

	// Plain messages are not completed.
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := splitCommandLine(input)
	if len(parts) == 0 {
		return c.completeCommands("")
	}

	// Still typing the command name?
	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(parts) - 2 // -1 for command, -1 for 0-based index
	partial := ""
	if strings.HasSuffix(input, " ") {
		argIndex++
	} else {
		partial = parts[len(parts)-1]
	}

	return c.completeArg(cmd, argIndex, partial)
}

// Lines returns whole-line candidates for line, the form line editors
// expect: the text before the partial word followed by each completion.
func (c *Completer) Lines(line string) []string {
	completions := c.Complete(line, len(line))
	if len(completions) == 0 {
		return nil
	}

	base := line
	if !strings.HasSuffix(line, " ") {
		if i := strings.LastIndexAny(line, " \t"); i >= 0 {
			base = line[:i+1]
		} else {
			base = ""
		}
	}

	lines := make([]string, 0, len(completions))
	for _, comp := range completions {
		lines = append(lines, base+quoteIfNeeded(comp.Value))
	}
	return lines
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

// completeCommands returns completions for command names.
func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}

		if strings.HasPrefix(strings.ToLower(cmd.Name), partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}

		// Aliases only once the user typed enough to mean them.
		if len(partial) < 2 {
			continue
		}
		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(strings.ToLower(alias), partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

// completeArg returns completions for a command argument.
func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]

	switch arg.Type {
	case ArgTypeSession:
		return c.completeSessions(partial)
	case ArgTypeFile:
		return c.completeFiles(partial)
	case ArgTypeEnum:
		return c.completeFromList(arg.Values, partial)
	case ArgTypeVoice:
		if c.VoicesFn == nil {
			return nil
		}
		return c.completeFromList(c.VoicesFn(), partial)
	case ArgTypeString:
		if arg.Completer != nil {
			return c.completeFromList(arg.Completer(), partial)
		}
		return nil
	default:
		return nil
	}
}

// completeSessions offers list numbers and id prefixes. A partial matching
// a title offers the chat's number.
func (c *Completer) completeSessions(partial string) []Completion {
	if c.SessionsFn == nil {
		return nil
	}

	var completions []Completion
	partial = strings.ToLower(partial)

	for i, session := range c.SessionsFn() {
		num := strconv.Itoa(i + 1)
		idMatch := partial != "" && strings.HasPrefix(strings.ToLower(session.ID), partial)
		numMatch := strings.HasPrefix(num, partial)
		titleMatch := partial != "" && strings.Contains(strings.ToLower(session.Title), partial)
		if !idMatch && !numMatch && !titleMatch {
			continue
		}

		value := num
		if idMatch {
			value = session.ID
		}
		score := calculateScore(value, partial)
		if titleMatch && !idMatch && !numMatch {
			score -= 5
		}

		completions = append(completions, Completion{
			Value:       value,
			Display:     num + " - " + util.Ellipsize(session.Title, 30),
			Description: session.Preview,
			Score:       score,
		})
	}

	sortCompletions(completions)
	return completions
}

// completeFiles returns completions for file paths.
func (c *Completer) completeFiles(partial string) []Completion {
	if c.FilesFn != nil {
		return c.completeFromList(c.FilesFn(partial), partial)
	}
	return c.defaultFileCompletion(partial)
}

// defaultFileCompletion lists the directory named by partial.
func (c *Completer) defaultFileCompletion(partial string) []Completion {
	var completions []Completion

	dir := filepath.Dir(partial)
	prefix := filepath.Base(partial)
	if partial == "" || strings.HasSuffix(partial, string(os.PathSeparator)) {
		dir = partial
		prefix = ""
	}
	// Keep the user's own spelling of the directory.
	base := ""
	if dir != "." || strings.HasPrefix(partial, "."+string(os.PathSeparator)) {
		base = dir
	}
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	prefix = strings.ToLower(prefix)

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}

		// Skip hidden files unless partial starts with .
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}

		path := name
		if base != "" {
			path = filepath.Join(base, name)
		}
		if entry.IsDir() {
			path += string(os.PathSeparator)
		}

		score := calculateScore(name, prefix)
		if entry.IsDir() {
			score += 5
		}

		desc := ""
		if info, err := entry.Info(); err == nil {
			if entry.IsDir() {
				desc = "directory"
			} else {
				desc = humanize.IBytes(uint64(info.Size()))
			}
		}

		completions = append(completions, Completion{
			Value:       path,
			Display:     name,
			Description: desc,
			Score:       score,
		})
	}

	sortCompletions(completions)

	if len(completions) > maxFileCompletions {
		completions = completions[:maxFileCompletions]
	}
	return completions
}

// completeFromList returns completions from a list of strings.
func (c *Completer) completeFromList(values []string, partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), partial) {
			completions = append(completions, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, partial),
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore calculates a match score for completion ranking.
// Higher score = better match.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100

	// Exact match
	if value == partial {
		return score + 100
	}

	// Prefix match bonus
	if strings.HasPrefix(value, partial) {
		score += 50
		// Bonus for shorter completions
		score += 20 - len(value)
	}

	// Length penalty
	score -= len(value) / 2

	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}
