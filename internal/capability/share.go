// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ShareResult is the outcome of a share attempt.
type ShareResult int

const (
	Shared ShareResult = iota
	Declined
	Unsupported
)

// String returns the result name.
func (r ShareResult) String() string {
	switch r {
	case Shared:
		return "shared"
	case Declined:
		return "declined"
	default:
		return "unsupported"
	}
}

// Sharer hands text to an external share target.
type Sharer interface {
	// Share returns Declined with a nil error when the user cancelled and
	// Declined with an error when the target failed.
	Share(ctx context.Context, title, text string) (ShareResult, error)
}

// CommandSharer pipes text to a command on stdin. "{title}" in the command
// is replaced with the share title. Exit status 1 with no output counts as a
// user cancel; any other failure is an error.
type CommandSharer struct {
	command []string
}

// NewCommandSharer creates a sharer. An empty command is Unsupported.
func NewCommandSharer(command []string) *CommandSharer {
	return &CommandSharer{command: command}
}

// Share runs the command.
func (s *CommandSharer) Share(ctx context.Context, title, text string) (ShareResult, error) {
	if len(s.command) == 0 {
		return Unsupported, nil
	}
	if _, err := exec.LookPath(s.command[0]); err != nil {
		return Unsupported, nil
	}

	args := make([]string, len(s.command)-1)
	for i, a := range s.command[1:] {
		args[i] = strings.ReplaceAll(a, "{title}", title)
	}
	cmd := exec.CommandContext(ctx, s.command[0], args...)
	cmd.Stdin = strings.NewReader(text)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return Shared, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && len(strings.TrimSpace(string(out))) == 0 {
		return Declined, nil
	}
	return Declined, fmt.Errorf("share failed: %w", err)
}

// NoSharer reports every share as unsupported.
type NoSharer struct{}

func (NoSharer) Share(context.Context, string, string) (ShareResult, error) {
	return Unsupported, nil
}
