// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/app"
	"github.com/jeranaias/echoflow/internal/commands"
	"github.com/jeranaias/echoflow/internal/config"
	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/turn"
)

// maxImageBytes caps an attached image.
const maxImageBytes = 10 * 1024 * 1024

func newChatCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. The last active chat is reopened.

Type a message and press Enter. Commands start with "/"; type /help for the
list. Ctrl+C cancels a pending reply, Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), e)
		},
	}
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader is the prompt the REPL reads from.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// chatInput is a liner prompt with history persisted in the config dir.
type chatInput struct {
	line        *liner.State
	historyFile string
}

func newChatInput() *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &chatInput{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (c *chatInput) Prompt(prompt string) (string, error) { return c.line.Prompt(prompt) }
func (c *chatInput) AppendHistory(item string)            { c.line.AppendHistory(item) }

// Close saves history with owner-only permissions and restores the terminal.
func (c *chatInput) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0755); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatREPL drives one interactive session over an App.
type chatREPL struct {
	a         *app.App
	p         *printer
	log       *zap.Logger
	exportDir string
	backend   string

	// shown counts messages already printed per session.
	shown map[string]int
	// listed is the last /list output, so chats can be opened by number.
	listed []model.HistoryEntry
	// now is the clock used for relative times.
	now func() time.Time

	cmds   *commands.Registry
	parser *commands.Parser
	// in is the prompt of the running loop, used by /voice.
	in lineReader
}

func newChatREPL(a *app.App, p *printer, log *zap.Logger) *chatREPL {
	r := &chatREPL{
		a:         a,
		p:         p,
		log:       log,
		exportDir: ".",
		shown:     make(map[string]int),
		now:       time.Now,
	}
	r.cmds = r.registry()
	r.parser = commands.NewParser(r.cmds)
	return r
}

func runChat(ctx context.Context, e *env) error {
	var r *chatREPL
	var p *printer
	accent := func() app.Accent {
		if r == nil {
			return app.AccentBlue
		}
		return r.a.Preferences().Accent
	}
	p = newPrinter(e.out, newMarkdown(e.cfg.UI.Markdown, e.cfg.UI.Style), accent)

	a, closeApp, err := e.newApp(notify.Func(p.Notice))
	if err != nil {
		return err
	}
	defer closeApp()

	r = newChatREPL(a, p, e.log)
	r.exportDir = config.ExpandPath(e.cfg.UI.ExportDir)
	r.backend = e.cfg.Backend.URL

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := a.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn("storage watch stopped", zap.Error(err))
		}
	}()

	in := newChatInput()
	defer in.Close()
	in.line.SetCompleter(r.completer().Lines)
	return r.run(ctx, in)
}

// run is the prompt loop. It returns nil on /quit, Ctrl+C at the prompt or
// end of input.
func (r *chatREPL) run(ctx context.Context, in lineReader) error {
	r.welcome()
	r.showAll()

	for {
		line, err := in.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.p.Line("")
				r.p.Line("%s", DimStyle.Render("Goodbye!"))
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		cont, err := r.handle(ctx, in, line)
		if err != nil {
			r.p.Error(err)
		}
		if !cont {
			r.p.Line("%s", DimStyle.Render("Goodbye!"))
			return nil
		}
	}
}

func (r *chatREPL) prompt() string {
	if r.a.Recording() {
		return WarningStyle.Render("● rec") + " "
	}
	return AccentStyle(r.a.Preferences().Accent).Render("echoflow>") + " "
}

// handle runs one input line. It returns false when the session should end.
func (r *chatREPL) handle(ctx context.Context, in lineReader, line string) (bool, error) {
	r.in = in
	res := r.parser.Parse(line)
	if !res.IsCommand {
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return false, nil
		}
		return true, r.send(ctx, line, nil)
	}

	if res.Command == nil {
		return true, usagef("unknown command: %s (type /help for commands)", res.CommandName)
	}

	err := r.cmds.Execute(ctx, res)
	var verr *commands.ValidationError
	switch {
	case errors.Is(err, commands.ErrQuit):
		return false, nil
	case errors.As(err, &verr):
		return true, usagef("%s (usage: %s)", verr.Message, usageOf(res.Command))
	}
	return true, err
}

// =============================================================================
// SENDING
// =============================================================================

// interruptible returns a context cancelled by Ctrl+C while a reply is
// pending.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// quietly runs fn and prints its error only when no notice already
// reported it.
func (r *chatREPL) quietly(fn func() error) error {
	before := r.p.NoticeCount()
	err := fn()
	r.flush()
	return r.reported(err, before)
}

func (r *chatREPL) reported(err error, noticesBefore int) error {
	if err != nil && r.p.NoticeCount() > noticesBefore {
		r.log.Debug("failure already reported", zap.Error(err))
		return nil
	}
	return err
}

func (r *chatREPL) send(ctx context.Context, text string, image *turn.Attachment) error {
	r.flush()
	start := len(r.a.Messages())
	r.p.Line("%s", DimStyle.Render(turn.PlaceholderText))

	tctx, cancel := interruptible(ctx)
	defer cancel()

	before := r.p.NoticeCount()
	err := r.a.Send(tctx, text, image)
	r.skipEcho(start)
	r.flush()
	return r.reported(err, before)
}

// skipEcho marks the user message recorded at index start as shown. It was
// typed at the prompt already.
func (r *chatREPL) skipEcho(start int) {
	msgs := r.a.Messages()
	if len(msgs) > start && msgs[start].Sender == model.SenderUser {
		r.shown[r.a.ActiveSessionID()] = start + 1
	}
}

func (r *chatREPL) image(ctx context.Context, arg string) error {
	path, text := splitFirst(arg)
	if path == "" {
		return usagef("usage: /image <path> [message]")
	}
	att, err := readImage(config.ExpandPath(path))
	if err != nil {
		return err
	}
	r.p.Line("%s %s", DimStyle.Render("Attached"), att.Name)
	return r.send(ctx, strings.TrimSpace(text), att)
}

// readImage loads an image attachment, sniffing its media type.
func readImage(path string) (*turn.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, usagef("cannot read image: %v", err)
	}
	if info.Size() > maxImageBytes {
		return nil, usagef("image is larger than %d MB", maxImageBytes/(1024*1024))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usagef("cannot read image: %v", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, usagef("%s is not an image (%s)", filepath.Base(path), mime)
	}
	return &turn.Attachment{Name: filepath.Base(path), MIMEType: mime, Data: data}, nil
}

func (r *chatREPL) voice(ctx context.Context, in lineReader) error {
	if err := r.a.StartRecording(ctx); err != nil {
		return err
	}
	r.p.Line("%s", WarningStyle.Render("Recording... press Enter to send, or type /cancel to discard."))

	line, err := in.Prompt(r.prompt())
	if err != nil || strings.EqualFold(strings.TrimSpace(line), "/cancel") {
		r.a.CancelRecording()
		r.p.Line("%s", DimStyle.Render("Recording discarded."))
		return nil
	}

	elapsed := r.a.RecordingElapsed().Truncate(time.Second)
	r.p.Line("%s %s", DimStyle.Render("Recorded"), elapsed)
	r.p.Line("%s", DimStyle.Render("Transcribing..."))

	tctx, cancel := interruptible(ctx)
	defer cancel()
	return r.quietly(func() error {
		return r.a.StopRecording(tctx)
	})
}

// =============================================================================
// DISPLAY
// =============================================================================

// flush prints messages of the active chat not shown yet. Pending
// placeholders are skipped.
func (r *chatREPL) flush() {
	id := r.a.ActiveSessionID()
	msgs := r.a.Messages()
	for i := r.shown[id]; i < len(msgs); i++ {
		if msgs[i].IsLoading {
			break
		}
		r.p.Message(i+1, msgs[i])
		r.shown[id] = i + 1
	}
}

// showAll prints the active chat's title and every message.
func (r *chatREPL) showAll() {
	id := r.a.ActiveSessionID()
	if entry, ok := r.a.Entry(id); ok {
		r.p.Line("%s", TitleStyle.Render(entry.Title))
		r.p.Line("%s", RenderSeparator(40))
	}
	r.shown[id] = 0
	r.flush()
}

func (r *chatREPL) welcome() {
	r.p.Line("")
	r.p.Line("%s", TitleStyle.Render("EchoFlow"))
	r.p.Line("%s", RenderSeparator(30))
	if r.backend != "" {
		r.p.Line("%s", RenderLabel("Backend:", r.backend))
	}
	r.p.Line("%s", RenderLabel("Chats:", strconv.Itoa(len(r.a.History("")))))
	r.p.Line("")
	r.p.Line("%s", DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	r.p.Line("")
}

func (r *chatREPL) help() {
	groups := r.cmds.ByCategory()
	accent := AccentStyle(r.a.Preferences().Accent)

	r.p.Line("")
	r.p.Line("%s", TitleStyle.Render("Available Commands"))
	r.p.Line("%s", RenderSeparator(20))
	for _, category := range helpCategories {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		r.p.Line("")
		r.p.Line("%s", LabelStyle.Render(category))
		for _, c := range cmds {
			r.p.Line("  %s  %s", accent.Render(fmt.Sprintf("%-22s", usageOf(c))), DimStyle.Render(c.Description))
		}
	}
	r.p.Line("")
	r.p.Line("%s", DimStyle.Render("Tip: Tab completes commands, Ctrl+C cancels a pending reply, Ctrl+D exits"))
	r.p.Line("")
}

// =============================================================================
// CHAT MANAGEMENT
// =============================================================================

func (r *chatREPL) list(query string) {
	r.listed = r.a.History(query)
	r.p.Line("%s", history.FormatList(r.listed, r.now()))
}

// resolveChat finds a chat by its number in the last /list or by id.
func (r *chatREPL) resolveChat(arg string) (string, error) {
	return resolveSession(r.listed, r.a.History(""), arg)
}

func (r *chatREPL) open(arg string) error {
	id, err := r.resolveChat(arg)
	if err != nil {
		return err
	}
	if err := r.a.SelectChat(id); err != nil {
		return err
	}
	r.showAll()
	return nil
}

func (r *chatREPL) delete(arg string) error {
	id := r.a.ActiveSessionID()
	if arg != "" {
		var err error
		if id, err = r.resolveChat(arg); err != nil {
			return err
		}
	}
	if err := r.a.DeleteChat(id); err != nil {
		return err
	}
	delete(r.shown, id)
	r.listed = nil
	return nil
}

// =============================================================================
// MESSAGE ACTIONS
// =============================================================================

// messageArg maps a message number to its id. Without one the last bot
// reply is used.
func (r *chatREPL) messageArg(arg string) (string, error) {
	msgs := r.a.Messages()
	if arg == "" {
		if m, ok := lastReply(msgs); ok {
			return m.ID, nil
		}
		return "", usagef("there is no reply to use yet")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(msgs) {
		return "", usagef("no message #%s in this chat", arg)
	}
	return msgs[n-1].ID, nil
}

func (r *chatREPL) share(ctx context.Context, arg string) error {
	if strings.EqualFold(arg, "chat") || strings.EqualFold(arg, "all") {
		return r.a.ShareChat(ctx)
	}
	id, err := r.messageArg(arg)
	if err != nil {
		return err
	}
	return r.a.Share(ctx, id)
}

// export writes the current chat. Format defaults to markdown and dir to
// the configured export directory.
func (r *chatREPL) export(format, dir string) error {
	if format == "" {
		format = "md"
	}
	if dir == "" {
		dir = r.exportDir
	}
	path, err := r.a.Export(format, config.ExpandPath(dir))
	if err != nil {
		return err
	}
	r.p.Line("%s %s", SuccessStyle.Render("[Exported]"), path)
	return nil
}

func (r *chatREPL) speak(ctx context.Context, arg string) error {
	id, err := r.messageArg(arg)
	if err != nil {
		return err
	}
	for _, m := range r.a.Messages() {
		if m.ID == id {
			return r.a.Speak(ctx, m.Text)
		}
	}
	return app.ErrMessageNotFound
}

func (r *chatREPL) voices(ctx context.Context, arg string) error {
	voices, err := r.a.Voices(ctx)
	if err != nil {
		return err
	}
	if arg != "" {
		uri := arg
		if n, convErr := strconv.Atoi(arg); convErr == nil && n >= 1 && n <= len(voices) {
			uri = voices[n-1].URI
		}
		if err := r.a.SelectVoice(ctx, uri); err != nil {
			return err
		}
	}

	if len(voices) == 0 {
		r.p.Line("%s", DimStyle.Render("No voices installed."))
		return nil
	}
	current, _ := r.a.CurrentVoice(ctx)
	for i, v := range voices {
		mark := " "
		if v.URI == current.URI {
			mark = "*"
		}
		r.p.Line("%3d %s %-28s %s", i+1, mark, v.Name, DimStyle.Render(v.Lang))
	}
	return nil
}

func (r *chatREPL) accent(arg string) error {
	if arg == "" {
		names := make([]string, 0, len(app.Accents))
		for _, a := range app.Accents {
			names = append(names, AccentStyle(a).Render(string(a)))
		}
		r.p.Line("%s %s", RenderLabel("Accent:", string(r.a.Preferences().Accent)), DimStyle.Render("("+strings.Join(names, ", ")+")"))
		return nil
	}
	return r.a.SetAccent(arg)
}
