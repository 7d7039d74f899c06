// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/echoflow/internal/app"
	"github.com/jeranaias/echoflow/internal/commands"
	"github.com/jeranaias/echoflow/internal/export"
)

// voicesTimeout bounds the voice lookup behind Tab completion.
const voicesTimeout = 3 * time.Second

// helpCategories is the order of groups in /help.
var helpCategories = []string{"Chats", "Messages", "Voice", "Settings", "General"}

// usageOf returns the command's usage line, or its name.
func usageOf(c *commands.Command) string {
	if c.Usage != "" {
		return c.Usage
	}
	return c.Name
}

// splitFirst splits raw arguments into the first word, which may be quoted,
// and the unsplit rest.
func splitFirst(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if q := raw[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(raw[1:], q); end >= 0 {
			return raw[1 : end+1], strings.TrimSpace(raw[end+2:])
		}
	}
	first, rest, _ := strings.Cut(raw, " ")
	return first, strings.TrimSpace(rest)
}

// registry binds the chat's slash commands to the session.
func (r *chatREPL) registry() *commands.Registry {
	reg := commands.NewRegistry()
	accents := make([]string, 0, len(app.Accents))
	for _, a := range app.Accents {
		accents = append(accents, strings.ToLower(string(a)))
	}

	// Chats
	reg.Register(&commands.Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new chat",
		Category:    "Chats",
		Handler: func(context.Context, commands.Invocation) error {
			r.a.NewChat()
			r.p.Line("%s", SuccessStyle.Render("[New chat]"))
			return nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/list",
		Aliases:     []string{"/ls", "/history"},
		Description: "List chats, optionally filtered by title",
		Usage:       "/list [query]",
		Category:    "Chats",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			r.list(inv.RawArgs)
			return nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/open",
		Aliases:     []string{"/o"},
		Description: "Open a chat from the list",
		Usage:       "/open <n|id>",
		Args:        []commands.ArgDef{{Name: "chat", Required: true, Type: commands.ArgTypeSession, Description: "list number or session id"}},
		Category:    "Chats",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			return r.open(inv.Arg(0))
		},
	})
	reg.Register(&commands.Command{
		Name:        "/show",
		Description: "Print the current chat again",
		Category:    "Chats",
		Handler: func(context.Context, commands.Invocation) error {
			r.showAll()
			return nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/rename",
		Description: "Rename the current chat",
		Usage:       "/rename <title>",
		Args:        []commands.ArgDef{{Name: "title", Required: true, Description: "new title"}},
		Category:    "Chats",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			return r.a.RenameChat(r.a.ActiveSessionID(), inv.RawArgs)
		},
	})
	reg.Register(&commands.Command{
		Name:        "/pin",
		Description: "Pin or unpin the current chat",
		Category:    "Chats",
		Handler: func(context.Context, commands.Invocation) error {
			pinned, err := r.a.TogglePin(r.a.ActiveSessionID())
			if err != nil {
				return err
			}
			if pinned {
				r.p.Line("%s", DimStyle.Render("Chat pinned."))
			} else {
				r.p.Line("%s", DimStyle.Render("Chat unpinned."))
			}
			return nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/delete",
		Aliases:     []string{"/del"},
		Description: "Delete a chat (default: current)",
		Usage:       "/delete [n|id]",
		Args:        []commands.ArgDef{{Name: "chat", Type: commands.ArgTypeSession}},
		Category:    "Chats",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			return r.delete(inv.Arg(0))
		},
	})
	reg.Register(&commands.Command{
		Name:        "/export",
		Description: "Export the current chat to a file",
		Usage:       "/export [md|json|txt] [dir]",
		Args: []commands.ArgDef{
			{Name: "format", Type: commands.ArgTypeEnum, Values: []string{"md", "json", "txt", export.FormatMarkdown, export.FormatText}},
			{Name: "dir", Type: commands.ArgTypeFile},
		},
		Category: "Chats",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			return r.export(inv.Arg(0), inv.Arg(1))
		},
	})

	// Messages
	reg.Register(&commands.Command{
		Name:        "/image",
		Aliases:     []string{"/img"},
		Description: "Send an image with an optional message",
		Usage:       "/image <path> [text]",
		Args:        []commands.ArgDef{{Name: "path", Required: true, Type: commands.ArgTypeFile}},
		Category:    "Messages",
		Handler: func(ctx context.Context, inv commands.Invocation) error {
			return r.image(ctx, inv.RawArgs)
		},
	})
	reg.Register(&commands.Command{
		Name:        "/copy",
		Description: "Copy a message (default: last reply)",
		Usage:       "/copy [n]",
		Category:    "Messages",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			id, err := r.messageArg(inv.Arg(0))
			if err != nil {
				return err
			}
			return r.a.Copy(id)
		},
	})
	reg.Register(&commands.Command{
		Name:        "/share",
		Description: "Share a message or the whole chat",
		Usage:       "/share [n|chat]",
		Category:    "Messages",
		Handler: func(ctx context.Context, inv commands.Invocation) error {
			return r.share(ctx, inv.Arg(0))
		},
	})

	// Voice
	reg.Register(&commands.Command{
		Name:        "/voice",
		Aliases:     []string{"/rec"},
		Description: "Record and send a voice note",
		Category:    "Voice",
		Handler: func(ctx context.Context, _ commands.Invocation) error {
			return r.voice(ctx, r.in)
		},
	})
	reg.Register(&commands.Command{
		Name:        "/speak",
		Aliases:     []string{"/say"},
		Description: "Read a message aloud (default: last reply)",
		Usage:       "/speak [n]",
		Category:    "Voice",
		Handler: func(ctx context.Context, inv commands.Invocation) error {
			return r.speak(ctx, inv.Arg(0))
		},
	})
	reg.Register(&commands.Command{
		Name:        "/stop",
		Description: "Stop reading aloud",
		Category:    "Voice",
		Handler: func(context.Context, commands.Invocation) error {
			r.a.StopSpeaking()
			return nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/voices",
		Description: "List or choose the speech voice",
		Usage:       "/voices [n|uri]",
		Args:        []commands.ArgDef{{Name: "voice", Type: commands.ArgTypeVoice}},
		Category:    "Voice",
		Handler: func(ctx context.Context, inv commands.Invocation) error {
			return r.voices(ctx, inv.Arg(0))
		},
	})

	// Settings
	reg.Register(&commands.Command{
		Name:        "/accent",
		Description: "Show or set the accent color",
		Usage:       "/accent [color]",
		Args:        []commands.ArgDef{{Name: "color", Type: commands.ArgTypeEnum, Values: accents}},
		Category:    "Settings",
		Handler: func(_ context.Context, inv commands.Invocation) error {
			return r.accent(inv.Arg(0))
		},
	})

	// General
	reg.Register(&commands.Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?", "/"},
		Description: "Show available commands",
		Category:    "General",
		Handler: func(context.Context, commands.Invocation) error {
			r.help()
			return nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit",
		Category:    "General",
		Handler: func(context.Context, commands.Invocation) error {
			return commands.ErrQuit
		},
	})
	return reg
}

// completer offers commands, chats, files and voices on Tab.
func (r *chatREPL) completer() *commands.Completer {
	c := commands.NewCompleter(r.cmds)
	c.SessionsFn = func() []commands.SessionInfo {
		entries := r.listed
		if len(entries) == 0 {
			entries = r.a.History("")
		}
		out := make([]commands.SessionInfo, 0, len(entries))
		for _, e := range entries {
			out = append(out, commands.SessionInfo{ID: e.SessionID, Title: e.Title, Preview: e.FirstMessageContent})
		}
		return out
	}
	c.VoicesFn = func() []string {
		ctx, cancel := context.WithTimeout(context.Background(), voicesTimeout)
		defer cancel()
		voices, err := r.a.Voices(ctx)
		if err != nil {
			return nil
		}
		uris := make([]string, 0, len(voices))
		for _, v := range voices {
			uris = append(uris, v.URI)
		}
		return uris
	}
	return c
}
