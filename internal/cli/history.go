// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/echoflow/internal/config"
	"github.com/jeranaias/echoflow/internal/conversation"
	"github.com/jeranaias/echoflow/internal/export"
	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/storage"
)

// =============================================================================
// CHAT LOOKUP
// =============================================================================

// resolveSession maps a list number, a full id or a unique id prefix to a
// session id. Numbers index listed; ids are matched against all.
func resolveSession(listed, all []model.HistoryEntry, arg string) (string, error) {
	if arg == "" {
		return "", usagef("a chat number or id is required")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(listed) {
			return "", usagef("no chat #%d in the list", n)
		}
		return listed[n-1].SessionID, nil
	}

	var match string
	for _, e := range all {
		if e.SessionID == arg {
			return arg, nil
		}
		if strings.HasPrefix(e.SessionID, arg) {
			if match != "" {
				return "", usagef("chat id %q is ambiguous", arg)
			}
			match = e.SessionID
		}
	}
	if match == "" {
		return "", history.ErrNotFound
	}
	return match, nil
}

// =============================================================================
// HISTORY COMMAND
// =============================================================================

// historyEnv is the store view the history subcommands work on. It does not
// touch the active chat.
type historyEnv struct {
	kv    storage.Store
	logs  *conversation.Store
	index *history.Index
}

func (e *env) openHistory() (*historyEnv, error) {
	kv, err := e.openStore()
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logs := conversation.New(kv, conversation.WithLogger(e.log.Named("conversation")))
	return &historyEnv{
		kv:   kv,
		logs: logs,
		index: history.Open(kv,
			history.WithSessionLog(logs),
			history.WithLogger(e.log.Named("history")),
		),
	}, nil
}

func (h *historyEnv) resolve(arg string) (string, error) {
	all := h.index.Entries()
	return resolveSession(all, all, arg)
}

// withHistory opens the store for the duration of fn.
func (e *env) withHistory(fn func(h *historyEnv) error) error {
	h, err := e.openHistory()
	if err != nil {
		return err
	}
	defer h.kv.Close()
	return fn(h)
}

func newHistoryCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Manage saved chats",
		Long: `List, show, rename, pin, delete and export saved chats.

Chats are addressed by their number in "echoflow history list" or by a
session id prefix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(e, "", false)
		},
	}

	cmd.AddCommand(
		newHistoryListCommand(e),
		newHistoryShowCommand(e),
		newHistoryRenameCommand(e),
		newHistoryPinCommand(e),
		newHistoryDeleteCommand(e),
		newHistoryExportCommand(e),
	)
	return cmd
}

func newHistoryListCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list [query]",
		Aliases: []string{"ls"},
		Short:   "List chats, pinned first",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return runHistoryList(e, query, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func runHistoryList(e *env, query string, asJSON bool) error {
	return e.withHistory(func(h *historyEnv) error {
		entries := h.index.Search(query)
		if asJSON {
			enc := json.NewEncoder(e.out)
			enc.SetIndent("", "  ")
			if entries == nil {
				entries = []model.HistoryEntry{}
			}
			return enc.Encode(entries)
		}
		fmt.Fprintln(e.out, history.FormatList(entries, time.Now()))
		return nil
	})
}

func newHistoryShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <n|id>",
		Short: "Print a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withHistory(func(h *historyEnv) error {
				id, err := h.resolve(args[0])
				if err != nil {
					return err
				}
				entry, _ := h.index.Get(id)
				p := newPrinter(e.out, newMarkdown(e.cfg.UI.Markdown, e.cfg.UI.Style), nil)
				p.Line("%s", TitleStyle.Render(entry.Title))
				p.Line("%s", DimStyle.Render(id))
				p.Line("%s", RenderSeparator(40))
				for i, m := range h.logs.Load(id) {
					p.Message(i+1, m)
				}
				return nil
			})
		},
	}
}

func newHistoryRenameCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <n|id> <title...>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withHistory(func(h *historyEnv) error {
				id, err := h.resolve(args[0])
				if err != nil {
					return err
				}
				if err := h.index.Rename(id, strings.Join(args[1:], " ")); err != nil {
					return err
				}
				fmt.Fprintln(e.out, SuccessStyle.Render("[Renamed]"), id)
				return nil
			})
		},
	}
}

func newHistoryPinCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <n|id>",
		Short: "Pin or unpin a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withHistory(func(h *historyEnv) error {
				id, err := h.resolve(args[0])
				if err != nil {
					return err
				}
				pinned, err := h.index.TogglePin(id)
				if err != nil {
					return err
				}
				state := "[Unpinned]"
				if pinned {
					state = "[Pinned]"
				}
				fmt.Fprintln(e.out, SuccessStyle.Render(state), id)
				return nil
			})
		},
	}
}

func newHistoryDeleteCommand(e *env) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "delete <n|id>...",
		Aliases: []string{"rm"},
		Short:   "Delete chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return usagef("give a chat number or id, or --all")
			}
			return e.withHistory(func(h *historyEnv) error {
				var ids []string
				if all {
					for _, entry := range h.index.Entries() {
						ids = append(ids, entry.SessionID)
					}
				}
				// Resolve everything first so numbers refer to one listing.
				for _, arg := range args {
					id, err := h.resolve(arg)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				for _, id := range ids {
					if err := h.index.Delete(id); err != nil {
						return err
					}
				}
				fmt.Fprintf(e.out, "%s %d chat(s)\n", SuccessStyle.Render("[Deleted]"), len(ids))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every chat")
	return cmd
}

func newHistoryExportCommand(e *env) *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export <n|id>",
		Short: "Export a chat to markdown, JSON or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withHistory(func(h *historyEnv) error {
				id, err := h.resolve(args[0])
				if err != nil {
					return err
				}
				entry, _ := h.index.Get(id)
				conv := &export.Conversation{Entry: entry, Messages: h.logs.Load(id)}

				opts := export.DefaultOptions()
				opts.OutputDir = config.ExpandPath(dir)
				exp, err := export.New(format, opts)
				if err != nil {
					return usagef("%v", err)
				}
				path, err := export.ExportToFile(conv, exp, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(e.out, SuccessStyle.Render("[Exported]"), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md, json or txt")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	return cmd
}
