// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/app"
	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/config"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/provider"
	"github.com/jeranaias/echoflow/internal/server"
	"github.com/jeranaias/echoflow/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeChat replies "reply to: <message>" or fails with err.
type fakeChat struct {
	mu   sync.Mutex
	err  error
	reqs []backend.ChatRequest
}

func (c *fakeChat) SendChatMessage(_ context.Context, req backend.ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return "", c.err
	}
	return "reply to: " + req.Message, nil
}

type fakeClipboard struct {
	copied []string
}

func (c *fakeClipboard) Supported() bool { return true }

func (c *fakeClipboard) Copy(text string) error {
	c.copied = append(c.copied, text)
	return nil
}

// scriptedInput feeds lines to the REPL, then reports end of input.
type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}

type replFixture struct {
	repl *chatREPL
	app  *app.App
	chat *fakeChat
	clip *fakeClipboard
	out  *bytes.Buffer
}

func newREPL(t *testing.T) *replFixture {
	t.Helper()
	f := &replFixture{chat: &fakeChat{}, clip: &fakeClipboard{}, out: &bytes.Buffer{}}

	p := newPrinter(f.out, newMarkdown(false, ""), nil)
	f.app = app.New(app.Deps{
		Store:     storage.NewMemoryStore(),
		Chat:      f.chat,
		Clipboard: f.clip,
	}, app.WithNotifier(notify.Func(p.Notice)))
	t.Cleanup(f.app.Close)

	f.repl = newChatREPL(f.app, p, zap.NewNop())
	f.repl.exportDir = t.TempDir()
	return f
}

func (f *replFixture) run(t *testing.T, lines ...string) string {
	t.Helper()
	f.out.Reset()
	require.NoError(t, f.repl.run(context.Background(), &scriptedInput{lines: lines}))
	return f.out.String()
}

// isolate points the config at an empty temporary home.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ECHOFLOW_HOME", dir)
	for _, name := range []string{
		"ECHOFLOW_BACKEND_URL", "ECHOFLOW_STORAGE", "ECHOFLOW_STORAGE_PATH",
		"ECHOFLOW_LANG", "ECHOFLOW_AUTOPLAY", "ECHOFLOW_LOG_LEVEL",
		"ECHOFLOW_PROVIDER", "ECHOFLOW_MODEL", "ECHOFLOW_ADDR",
		"ECHOFLOW_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(name, "")
	}
	return dir
}

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// EXIT CODES AND HELPERS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usagef("bad %s", "flag"), ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "log.level", Message: "bad"}}), ExitConfigError},
		{"interrupted", fmt.Errorf("send: %w", context.Canceled), ExitInterrupted},
		{"validation", history.ErrNotFound, ExitUsageError},
		{"backend", errs.Backend("turn", "boom", nil), ExitBackendError},
		{"unavailable", errs.Unavailable("voice", "no mic", nil), ExitUnavailableError},
		{"storage", errs.Corrupt("storage", "bad json", nil), ExitStorageError},
		{"plain", errors.New("plain"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, errs.Backend("turn", "Gemini request failed", errors.New("503")))
	assert.Contains(t, buf.String(), "[Error] Gemini request failed")

	buf.Reset()
	DisplayError(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello world", preview("hello\n  world", 20))
	assert.Equal(t, "abcdefg...", preview("abcdefghijklmnop", 10))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "****wxyz", maskSecret("abcdefghijwxyz"))
	assert.True(t, isSecretKey("server.api_key"))
	assert.False(t, isSecretKey("server.model"))
}

func TestResolveSession(t *testing.T) {
	all := []model.HistoryEntry{
		{SessionID: "session_100_aaaa", Title: "First"},
		{SessionID: "session_100_aabb", Title: "Second"},
		{SessionID: "session_200_cccc", Title: "Third"},
	}
	listed := all[2:]

	id, err := resolveSession(listed, all, "1")
	require.NoError(t, err)
	assert.Equal(t, "session_200_cccc", id)

	id, err = resolveSession(listed, all, "session_100_aabb")
	require.NoError(t, err)
	assert.Equal(t, "session_100_aabb", id)

	id, err = resolveSession(listed, all, "session_2")
	require.NoError(t, err)
	assert.Equal(t, "session_200_cccc", id)

	_, err = resolveSession(listed, all, "session_100_aa")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = resolveSession(listed, all, "2")
	assert.Error(t, err)

	_, err = resolveSession(listed, all, "nope")
	assert.ErrorIs(t, err, history.ErrNotFound)

	_, err = resolveSession(listed, all, "")
	assert.Error(t, err)
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "dot.png")
	data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	require.NoError(t, os.WriteFile(png, data, 0644))

	att, err := readImage(png)
	require.NoError(t, err)
	assert.Equal(t, "dot.png", att.Name)
	assert.Equal(t, "image/png", att.MIMEType)
	assert.Equal(t, data, att.Data)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("just text"), 0644))
	_, err = readImage(txt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not an image")

	_, err = readImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

// =============================================================================
// PRINTER
// =============================================================================

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, newMarkdown(false, ""), nil)
	ts := time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)

	p.Message(1, model.Message{ID: "m1", Text: "Hi there", Sender: model.SenderBot, Timestamp: ts})
	p.Message(2, model.Message{ID: "m2", Text: "Error: boom", Sender: model.SenderSystem, Timestamp: ts})
	out := buf.String()
	assert.Contains(t, out, "1.")
	assert.Contains(t, out, "09:30")
	assert.Contains(t, out, "Hi there")
	assert.Contains(t, out, "Error: boom")

	buf.Reset()
	assert.Equal(t, 0, p.NoticeCount())
	p.Notice(notify.Info("Copied", "Message copied to clipboard."))
	p.Notice(notify.Error("Error", "boom"))
	assert.Equal(t, 2, p.NoticeCount())
	assert.Contains(t, buf.String(), "[Copied] Message copied to clipboard.")
	assert.Contains(t, buf.String(), "[Error] boom")
}

// =============================================================================
// CHAT REPL
// =============================================================================

func TestREPL_SendPrintsReplyOnce(t *testing.T) {
	f := newREPL(t)

	out := f.run(t, "hello", "/quit")
	assert.Contains(t, out, "Thinking...")
	assert.Equal(t, 1, strings.Count(out, "reply to: hello"))
	assert.Contains(t, out, "Goodbye!")

	msgs := f.app.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, "reply to: hello", msgs[1].Text)
	assert.Equal(t, 2, f.repl.shown[f.app.ActiveSessionID()])
}

func TestREPL_FailureReportedOnce(t *testing.T) {
	f := newREPL(t)
	f.chat.err = errors.New("backend down")

	out := f.run(t, "hello")
	assert.Equal(t, 1, strings.Count(out, "[Error]"))
	assert.Contains(t, out, "Error: backend down")
}

func TestREPL_EndOfInputExits(t *testing.T) {
	f := newREPL(t)
	out := f.run(t)
	assert.Contains(t, out, "Goodbye!")
}

func TestREPL_UnknownCommand(t *testing.T) {
	f := newREPL(t)
	out := f.run(t, "/frobnicate")
	assert.Contains(t, out, "unknown command: /frobnicate")
}

func TestREPL_ChatManagement(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()
	in := &scriptedInput{}

	_, err := f.repl.handle(ctx, in, "first question")
	require.NoError(t, err)
	first := f.app.ActiveSessionID()

	_, err = f.repl.handle(ctx, in, "/new")
	require.NoError(t, err)
	assert.NotEqual(t, first, f.app.ActiveSessionID())

	_, err = f.repl.handle(ctx, in, "second question")
	require.NoError(t, err)

	f.out.Reset()
	_, err = f.repl.handle(ctx, in, "/list")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "first question")
	assert.Contains(t, f.out.String(), "second question")
	require.Len(t, f.repl.listed, 2)

	// The newest chat is listed first.
	_, err = f.repl.handle(ctx, in, "/open 2")
	require.NoError(t, err)
	assert.Equal(t, first, f.app.ActiveSessionID())

	_, err = f.repl.handle(ctx, in, "/rename Trip plans")
	require.NoError(t, err)
	entry, ok := f.app.Entry(first)
	require.True(t, ok)
	assert.Equal(t, "Trip plans", entry.Title)

	f.out.Reset()
	_, err = f.repl.handle(ctx, in, "/pin")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Chat pinned.")

	_, err = f.repl.handle(ctx, in, "/delete")
	require.NoError(t, err)
	assert.NotEqual(t, first, f.app.ActiveSessionID())
	assert.Len(t, f.app.History(""), 1)

	_, err = f.repl.handle(ctx, in, "/open 9")
	assert.Error(t, err)
}

func TestREPL_CopyAndShare(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()
	in := &scriptedInput{}

	_, err := f.repl.handle(ctx, in, "/copy")
	assert.Error(t, err)

	_, err = f.repl.handle(ctx, in, "ping")
	require.NoError(t, err)

	_, err = f.repl.handle(ctx, in, "/copy")
	require.NoError(t, err)
	_, err = f.repl.handle(ctx, in, "/copy 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reply to: ping", "ping"}, f.clip.copied)

	// Without a share target the text is copied instead.
	f.out.Reset()
	_, err = f.repl.handle(ctx, in, "/share")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Sharing Not Supported")
	assert.Len(t, f.clip.copied, 3)

	_, err = f.repl.handle(ctx, in, "/copy 7")
	assert.Error(t, err)
}

func TestREPL_Export(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()
	in := &scriptedInput{}

	_, err := f.repl.handle(ctx, in, "/export")
	assert.Error(t, err, "an empty chat cannot be exported")

	_, err = f.repl.handle(ctx, in, "hello")
	require.NoError(t, err)

	f.out.Reset()
	_, err = f.repl.handle(ctx, in, "/export json")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "[Exported]")

	files, err := filepath.Glob(filepath.Join(f.repl.exportDir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "reply to: hello")
}

func TestREPL_ImageAttachment(t *testing.T) {
	f := newREPL(t)
	img := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(img, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...), 0644))

	_, err := f.repl.handle(context.Background(), &scriptedInput{}, "/image "+img+" what is this")
	require.NoError(t, err)

	require.Len(t, f.chat.reqs, 1)
	assert.Equal(t, "what is this", f.chat.reqs[0].Message)
	assert.True(t, strings.HasPrefix(f.chat.reqs[0].ImageDataURI, "data:image/png;base64,"))
	assert.Equal(t, "what is this [Image attached: cat.png]", f.app.Messages()[0].Text)
}

func TestREPL_AccentAndVoiceUnavailable(t *testing.T) {
	f := newREPL(t)
	ctx := context.Background()
	in := &scriptedInput{}

	_, err := f.repl.handle(ctx, in, "/accent rose")
	require.NoError(t, err)
	assert.Equal(t, app.AccentRose, f.app.Preferences().Accent)

	_, err = f.repl.handle(ctx, in, "/accent teal")
	assert.Error(t, err)

	_, err = f.repl.handle(ctx, in, "/voices")
	assert.Equal(t, ExitUnavailableError, GetExitCode(err))
}

func TestREPL_QuitWords(t *testing.T) {
	f := newREPL(t)
	for _, line := range []string{"/quit", "/exit", "/q", "exit", "QUIT"} {
		cont, err := f.repl.handle(context.Background(), &scriptedInput{}, line)
		require.NoError(t, err)
		assert.False(t, cont, line)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "echoflow "+Version)
}

func TestConfigSetAndGet(t *testing.T) {
	home := isolate(t)

	out, err := execute(t, "config", "set", "ui.bell", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "ui.bell = true")

	out, err = execute(t, "config", "get", "ui.bell")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml")+"\n", out)

	_, err = execute(t, "config", "set", "log.level", "loud")
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, err = execute(t, "config", "set", "nope.key", "1")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestConfigGetMasksAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "AIzaSyExampleKey1234")

	out, err := execute(t, "config", "get", "server.api_key")
	require.NoError(t, err)
	assert.Equal(t, "****1234\n", out)

	// Environment keys are not written to the file.
	_, err = execute(t, "config", "set", "server.model", "gemini-2.0-flash")
	require.NoError(t, err)
	path, err := config.ConfigPathTOML()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AIzaSyExampleKey1234")
}

func TestAskAndHistory(t *testing.T) {
	isolate(t)

	ts := httptest.NewServer(server.New(provider.Echo{}).Handler())
	defer ts.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	t.Setenv("ECHOFLOW_BACKEND_URL", ts.URL)

	out, err := execute(t, "ask", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "You said: hello there")

	out, err = execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hello there")

	out, err = execute(t, "history", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "You said: hello there")

	out, err = execute(t, "history", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 chat(s)")

	out, err = execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No chats found.")
}

func TestAskRequiresMessage(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--ephemeral", "ask")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestSplitFirst(t *testing.T) {
	tests := []struct {
		raw, first, rest string
	}{
		{"", "", ""},
		{"cat.png", "cat.png", ""},
		{"cat.png what's this?", "cat.png", "what's this?"},
		{`"my cat.png" what is it`, "my cat.png", "what is it"},
		{`'my cat.png'`, "my cat.png", ""},
		{`"unterminated rest`, `"unterminated`, "rest"},
	}
	for _, tt := range tests {
		first, rest := splitFirst(tt.raw)
		assert.Equal(t, tt.first, first, tt.raw)
		assert.Equal(t, tt.rest, rest, tt.raw)
	}
}

func TestREPL_HelpListsCommands(t *testing.T) {
	f := newREPL(t)
	out := f.run(t, "/help")
	for _, want := range []string{"Chats", "Voice", "/open <n|id>", "/image <path> [text]", "/quit"} {
		assert.Contains(t, out, want)
	}
}

func TestREPL_ArgumentValidation(t *testing.T) {
	f := newREPL(t)
	_, err := f.repl.handle(context.Background(), &scriptedInput{}, "/open")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Contains(t, err.Error(), "usage: /open <n|id>")
}

func TestREPL_CompleterOffersChats(t *testing.T) {
	f := newREPL(t)
	_, err := f.repl.handle(context.Background(), &scriptedInput{}, "plan a trip")
	require.NoError(t, err)

	lines := f.repl.completer().Lines("/op")
	assert.Equal(t, []string{"/open"}, lines)

	lines = f.repl.completer().Lines("/open ")
	assert.Equal(t, []string{"/open 1"}, lines)
}
