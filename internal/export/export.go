// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Conversation is one chat as it appears in the history index together with
// its message log.
type Conversation struct {
	Entry    model.HistoryEntry
	Messages []model.Message
}

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Supported format names accepted by New.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

// ErrUnknownFormat is returned by New for an unrecognized format name.
var ErrUnknownFormat = errors.New("unknown export format")

// New returns the exporter for a format name. "md" and "txt" are accepted as
// aliases.
func New(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown, "md", "":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatText, "txt":
		return NewTextExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata includes a metadata header (title, dates, counts).
	IncludeMetadata bool

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool

	// Now overrides the export clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports a conversation to a file using the specified exporter.
// Returns the output file path or an error.
func ExportToFile(conv *Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("chat_%s_%s%s",
		sanitizeFilename(conv.Entry.Title),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// visible drops loading placeholders; they never belong in an export.
func (c *Conversation) visible() []model.Message {
	out := make([]model.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !m.IsLoading {
			out = append(out, m)
		}
	}
	return out
}

func validate(op string, conv *Conversation) ([]model.Message, error) {
	if conv == nil {
		return nil, errs.Validation(op, "conversation is nil")
	}
	msgs := conv.visible()
	if len(msgs) == 0 {
		return nil, errs.Validation(op, "conversation has no messages")
	}
	return msgs, nil
}

// title falls back the same way decoding a history entry does.
func title(conv *Conversation) string {
	if t := strings.TrimSpace(conv.Entry.Title); t != "" {
		return t
	}
	if conv.Entry.SessionID != "" {
		return model.FallbackTitle(conv.Entry.SessionID)
	}
	return "Untitled chat"
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var filenameReplacer = map[rune]rune{
	'/':  '-',
	'\\': '-',
	':':  '-',
	'*':  '-',
	'?':  '-',
	'"':  '-',
	'<':  '-',
	'>':  '-',
	'|':  '-',
	' ':  '_',
	'\t': '_',
	'\n': '_',
	'\r': '_',
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(strings.TrimSpace(s), 50)

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := filenameReplacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "chat"
	}
	return string(result)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
