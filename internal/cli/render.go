// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/echoflow/internal/app"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdown renders bot replies with glamour. A nil renderer prints text
// unchanged.
type markdown struct {
	r *glamour.TermRenderer
}

// newMarkdown builds a renderer for style ("auto" follows the terminal
// background). Rendering is off when enabled is false or stdout is not a
// terminal, so piped output stays plain.
func newMarkdown(enabled bool, style string) *markdown {
	if !enabled || !IsStdoutTTY() {
		return &markdown{}
	}

	width := GetTerminalWidth() - 4
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return &markdown{}
	}
	return &markdown{r: r}
}

// Render returns content for the terminal, falling back to the raw text.
func (m *markdown) Render(content string) string {
	if m == nil || m.r == nil {
		return content + "\n"
	}
	out, err := m.r.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

// =============================================================================
// MESSAGE PRINTING
// =============================================================================

// printer writes messages and notices. It is shared between the prompt loop
// and turn callbacks, so writes are serialized.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	md      *markdown
	accent  func() app.Accent
	notices int
}

func newPrinter(out io.Writer, md *markdown, accent func() app.Accent) *printer {
	if accent == nil {
		accent = func() app.Accent { return app.AccentBlue }
	}
	return &printer{out: out, md: md, accent: accent}
}

// header is "You · 15:04" in the sender's style.
func (p *printer) header(m model.Message) string {
	name := m.Sender.DisplayName()
	var styled string
	switch m.Sender {
	case model.SenderUser:
		styled = AccentStyle(p.accent()).Render(name)
	case model.SenderSystem:
		styled = SystemStyle.Render(name)
	default:
		styled = TitleStyle.Render(name)
	}
	return styled + " " + DimStyle.Render(m.Timestamp.Local().Format("15:04"))
}

// Message prints one message with its number in the conversation.
func (p *printer) Message(n int, m model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	num := DimStyle.Render(fmt.Sprintf("%d.", n))
	fmt.Fprintf(p.out, "%s %s\n", num, p.header(m))
	switch {
	case m.IsLoading:
		fmt.Fprintln(p.out, DimStyle.Render(m.Text))
	case m.Sender == model.SenderBot:
		fmt.Fprint(p.out, p.md.Render(m.Text))
	case m.Sender == model.SenderSystem:
		fmt.Fprintln(p.out, SystemStyle.Render(m.Text))
	default:
		fmt.Fprintln(p.out, m.Text)
	}
	fmt.Fprintln(p.out)
}

// Notice prints a toast-style line.
func (p *printer) Notice(n notify.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices++

	title := SuccessStyle.Render("[" + n.Title + "]")
	if n.Variant == notify.Destructive {
		title = ErrorStyle.Render("[" + n.Title + "]")
	}
	fmt.Fprintf(p.out, "%s %s\n", title, n.Description)
}

// NoticeCount returns how many notices were printed so far.
func (p *printer) NoticeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notices
}

// Line prints a plain line.
func (p *printer) Line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Error prints err in the standard error form.
func (p *printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	DisplayError(p.out, err)
}

// preview flattens text to one line of at most n runes.
func preview(text string, n int) string {
	return util.Ellipsize(strings.Join(strings.Fields(text), " "), n)
}
