// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/echoflow/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv *Conversation) ([]byte, error) {
	msgs, err := validate("export.markdown", conv)
	if err != nil {
		return nil, err
	}

	name := title(conv)
	exported := e.options.now()
	var sb strings.Builder

	// YAML frontmatter
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(name))
		fmt.Fprintf(&sb, "session: %s\n", conv.Entry.SessionID)
		if !conv.Entry.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "updated: %s\n", conv.Entry.Timestamp.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "pinned: %t\n", conv.Entry.IsPinned)
		fmt.Fprintf(&sb, "messages: %d\n", len(msgs))
		fmt.Fprintf(&sb, "exported: %s\n", exported.Format(time.RFC3339))
		sb.WriteString("generator: echoflow\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(name))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(msgs[0].Timestamp))
		fmt.Fprintf(&sb, "- **Last Activity**: %s\n", formatTimestamp(msgs[len(msgs)-1].Timestamp))
		fmt.Fprintf(&sb, "- **Messages**: %d (%d from you)\n",
			len(msgs), model.CountBySender(msgs, model.SenderUser))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range msgs {
		label := formatRoleLabel(msg.Sender)
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		// Bot text is already markdown.
		sb.WriteString(strings.TrimSpace(msg.Text))
		sb.WriteString("\n\n")

		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from EchoFlow on %s*\n", exported.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatRoleLabel(s model.Sender) string {
	if !s.Valid() {
		return "Unknown"
	}
	return s.DisplayName()
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"\n", " ",
	)
	return r.Replace(s)
}

// escapeYAML quotes a scalar when it carries YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
