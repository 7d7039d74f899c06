// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/echoflow/internal/app"
	"github.com/jeranaias/echoflow/internal/config"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/turn"
)

// askOptions holds the flags of the ask command.
type askOptions struct {
	image     string
	resume    bool
	raw       bool
}

func newAskCommand(e *env) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply.

The message is read from the arguments, or from stdin when none are given.
A new chat is started unless --continue is set.`,
		Example: `  echoflow ask "What is the capital of France?"
  echoflow ask --image photo.jpg "What is in this picture?"
  git diff | echoflow ask --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && opts.image == "" && !IsTTY() {
				data, err := io.ReadAll(e.in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			return runAsk(cmd.Context(), e, text, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.image, "image", "i", "", "attach an image file")
	cmd.Flags().BoolVar(&opts.resume, "continue", false, "add to the last active chat")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

func runAsk(ctx context.Context, e *env, text string, opts askOptions) error {
	if strings.TrimSpace(text) == "" && opts.image == "" {
		return usagef("a message is required")
	}

	var image *turn.Attachment
	if opts.image != "" {
		var err error
		if image, err = readImage(config.ExpandPath(opts.image)); err != nil {
			return err
		}
	}

	// The failure is returned and printed once by Execute.
	a, closeApp, err := e.newApp(notify.Discard, app.WithAutoplay(false))
	if err != nil {
		return err
	}
	defer closeApp()

	if !opts.resume {
		a.NewChat()
	}

	tctx, cancel := interruptible(ctx)
	defer cancel()
	if err := a.Send(tctx, text, image); err != nil {
		return err
	}

	reply, ok := lastReply(a.Messages())
	if !ok {
		return nil
	}
	md := newMarkdown(e.cfg.UI.Markdown && !opts.raw, e.cfg.UI.Style)
	fmt.Fprint(e.out, md.Render(reply.Text))
	return nil
}

// lastReply returns the newest finished bot message.
func lastReply(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == model.SenderBot && !msgs[i].IsLoading {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}
