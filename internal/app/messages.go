// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/capability"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/export"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/turn"
	"github.com/jeranaias/echoflow/internal/voice"
)

// ErrMessageNotFound is returned for a message id not in the active session.
var ErrMessageNotFound = &errs.Error{Kind: errs.KindValidation, Op: "app", Msg: "message not found"}

// =============================================================================
// SENDING
// =============================================================================

// Send submits text, with an optional image, to the active session. It
// blocks until the reply is recorded. The turn belongs to the session that
// was active at call time even if the user switches chats meanwhile.
func (a *App) Send(ctx context.Context, text string, image *turn.Attachment) error {
	a.pulse()
	return a.turns.Submit(ctx, turn.Input{
		SessionID:  a.ActiveSessionID(),
		Text:       text,
		Attachment: image,
	})
}

// StartRecording begins a voice note for the active session.
func (a *App) StartRecording(ctx context.Context) error {
	if err := a.voice.Start(ctx, a.ActiveSessionID()); err != nil {
		return err
	}
	a.pulse()
	return nil
}

// StopRecording finishes the voice note and runs its turn. It blocks until
// the reply is recorded.
func (a *App) StopRecording(ctx context.Context) error {
	a.pulse()
	return a.voice.Stop(ctx)
}

// CancelRecording discards a voice note in progress.
func (a *App) CancelRecording() {
	a.voice.Cancel()
}

// Recording reports whether a voice note is being captured.
func (a *App) Recording() bool {
	return a.voice.State() == voice.Recording
}

// RecordingElapsed returns how long the current note has been recording.
func (a *App) RecordingElapsed() time.Duration {
	return a.voice.Elapsed()
}

// RecordingSupported reports whether a recorder is available.
func (a *App) RecordingSupported() bool {
	return a.voice.Supported()
}

// =============================================================================
// COPY AND SHARE
// =============================================================================

func (a *App) findMessage(messageID string) (model.Message, error) {
	for _, m := range a.Messages() {
		if m.ID == messageID {
			return m, nil
		}
	}
	return model.Message{}, ErrMessageNotFound
}

// Copy puts a message's text on the clipboard.
func (a *App) Copy(messageID string) error {
	a.pulse()
	msg, err := a.findMessage(messageID)
	if err != nil {
		return err
	}
	return a.copyText(msg.Text)
}

func (a *App) copyText(text string) error {
	if err := a.clip.Copy(text); err != nil {
		a.log.Warn("clipboard copy failed", zap.Error(err))
		a.notifier.Notify(notify.Error("Error", "Could not copy the message."))
		return err
	}
	a.notifier.Notify(notify.Info("Copied", "Message copied to clipboard."))
	return nil
}

// Share hands a message to the share target. When sharing is unsupported
// or fails the text is copied instead. A cancelled share does nothing.
func (a *App) Share(ctx context.Context, messageID string) error {
	a.pulse()
	msg, err := a.findMessage(messageID)
	if err != nil {
		return err
	}
	return a.share(ctx, "EchoFlow message", msg.Text)
}

// ShareChat shares the whole active conversation as a plain transcript.
func (a *App) ShareChat(ctx context.Context) error {
	a.pulse()
	conv, err := a.conversation()
	if err != nil {
		return err
	}
	text, err := export.NewTextExporter(&export.Options{}).Export(conv)
	if err != nil {
		return err
	}
	return a.share(ctx, conv.Entry.Title, string(text))
}

func (a *App) share(ctx context.Context, title, text string) error {
	res, err := a.sharer.Share(ctx, title, text)
	switch {
	case res == capability.Shared:
		return nil
	case res == capability.Declined && err == nil:
		a.log.Debug("share cancelled")
		return nil
	case res == capability.Unsupported:
		a.notifier.Notify(notify.Info("Sharing Not Supported", "Sharing is not available. Message copied."))
	default:
		a.log.Warn("share failed", zap.Error(err))
		a.notifier.Notify(notify.Info("Share Failed", "Could not share. Message copied instead."))
	}
	return a.copyText(text)
}

// =============================================================================
// EXPORT
// =============================================================================

func (a *App) conversation() (*export.Conversation, error) {
	id := a.ActiveSessionID()
	entry, ok := a.index.Get(id)
	if !ok {
		entry = model.HistoryEntry{SessionID: id}
	}
	msgs := a.logs.Load(id)
	if len(msgs) == 0 {
		return nil, errs.Validation("app.export", "this chat has no messages yet")
	}
	return &export.Conversation{Entry: entry, Messages: msgs}, nil
}

// Export writes the active chat to dir in the named format and returns the
// file path.
func (a *App) Export(format, dir string) (string, error) {
	conv, err := a.conversation()
	if err != nil {
		return "", err
	}
	opts := export.DefaultOptions()
	opts.OutputDir = dir
	opts.Now = a.cfg.now
	exp, err := export.New(format, opts)
	if err != nil {
		return "", errs.Validation("app.export", err.Error())
	}
	path, err := export.ExportToFile(conv, exp, opts)
	if err != nil {
		return "", err
	}
	a.log.Info("chat exported", zap.String("session", conv.Entry.SessionID), zap.String("path", path))
	return path, nil
}
