// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/history"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/session"
)

// =============================================================================
// CHAT MANAGEMENT
// =============================================================================

// NewChat starts a fresh session and makes it active. Speech and any
// recording in progress are stopped. The session gets a history entry only
// once its first user message is sent.
func (a *App) NewChat() string {
	a.pulse()
	return a.startFresh()
}

func (a *App) startFresh() string {
	a.interrupt()
	id := session.NewID()
	a.setActive(id)
	return id
}

// interrupt stops what belongs to the session being left.
func (a *App) interrupt() {
	a.speaker.Stop()
	a.voice.Cancel()
}

// SelectChat makes an existing session active.
func (a *App) SelectChat(sessionID string) error {
	if !a.index.Contains(sessionID) {
		return history.ErrNotFound
	}
	if sessionID == a.ActiveSessionID() {
		return nil
	}
	a.interrupt()
	a.setActive(sessionID)
	return nil
}

// DeleteChat removes a session's entry and log. Deleting the active session
// starts a fresh one. A reply still pending for the session is dropped.
func (a *App) DeleteChat(sessionID string) error {
	a.pulse()
	if err := a.turns.Abandon(sessionID, func() error { return a.index.Delete(sessionID) }); err != nil {
		return err
	}
	a.notifier.Notify(notify.Info("Chat Deleted", "The conversation has been deleted."))
	a.log.Info("chat deleted", zap.String("session", sessionID))

	if sessionID == a.ActiveSessionID() {
		a.startFresh()
	}
	return nil
}

// RenameChat sets a session's title. An empty title is rejected with a
// notice and nothing changes.
func (a *App) RenameChat(sessionID, title string) error {
	a.pulse()
	if err := a.index.Rename(sessionID, title); err != nil {
		if errors.Is(err, history.ErrEmptyTitle) {
			a.notifier.Notify(notify.Error("Error", "The title cannot be empty."))
		}
		return err
	}
	a.notifier.Notify(notify.Info("Chat Renamed", "The conversation title has been updated."))
	return nil
}

// TogglePin flips a session's pin and returns the new value.
func (a *App) TogglePin(sessionID string) (bool, error) {
	a.pulse()
	pinned, err := a.index.TogglePin(sessionID)
	if err != nil {
		return false, err
	}
	if pinned {
		a.notifier.Notify(notify.Info("Chat Pinned", "The conversation has been pinned."))
	} else {
		a.notifier.Notify(notify.Info("Chat Unpinned", "The conversation has been unpinned."))
	}
	return pinned, nil
}

// History returns the sorted index, filtered by a title query when one is
// given.
func (a *App) History(query string) []model.HistoryEntry {
	if query == "" {
		return a.index.Entries()
	}
	return a.index.Search(query)
}

// Entry returns the history entry of a session.
func (a *App) Entry(sessionID string) (model.HistoryEntry, bool) {
	return a.index.Get(sessionID)
}

// ReloadHistory re-reads the index from the store. The current index is
// kept when the store cannot be read.
func (a *App) ReloadHistory() error {
	return a.index.Reload()
}
