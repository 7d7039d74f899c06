// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
)

// TextExporter renders a plain transcript, used when a whole chat is shared
// or copied to the clipboard.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new plain-text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export converts a conversation to a plain transcript.
func (e *TextExporter) Export(conv *Conversation) ([]byte, error) {
	msgs, err := validate("export.text", conv)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(title(conv))
	sb.WriteString("\n\n")
	for i, msg := range msgs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "[%s] ", formatShortTimestamp(msg.Timestamp))
		}
		fmt.Fprintf(&sb, "%s: %s", formatRoleLabel(msg.Sender), strings.TrimSpace(msg.Text))
	}
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for plain text.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}
