// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/storage"
	"github.com/jeranaias/echoflow/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned for a session without a history entry.
	ErrNotFound = &errs.Error{Kind: errs.KindValidation, Op: "history", Msg: "chat not found"}

	// ErrEmptyTitle is returned by Rename for a blank title.
	ErrEmptyTitle = &errs.Error{Kind: errs.KindValidation, Op: "history", Msg: "title must not be empty"}
)

// SessionLog is the part of the conversation store the index relies on.
type SessionLog interface {
	CountBySender(sessionID string, sender model.Sender) int
	Delete(sessionID string) error
}

// =============================================================================
// INDEX
// =============================================================================

// Index is the persisted chat catalogue.
type Index struct {
	kv   storage.Store
	logs SessionLog
	now  func() time.Time
	log  *zap.Logger

	mu      sync.Mutex
	entries []model.HistoryEntry
	// stale is set when the stored index could not be read. Mutations
	// re-read it first and refuse to write over it.
	stale bool
}

// Option configures an Index.
type Option func(*Index)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Index) { i.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.log = l
		}
	}
}

// WithSessionLog supplies the message logs used to prove a first user
// message and to delete a chat's log with its entry.
func WithSessionLog(logs SessionLog) Option {
	return func(i *Index) { i.logs = logs }
}

// Open loads the index stored in kv. A missing or corrupt index starts
// empty. When the store cannot be read the index also starts empty but is
// not written until a later read succeeds.
func Open(kv storage.Store, opts ...Option) *Index {
	idx := &Index{
		kv:  kv,
		now: time.Now,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	entries, err := idx.read()
	if err != nil {
		idx.log.Error("history index unreadable", zap.Error(err))
		idx.stale = true
	}
	idx.entries = entries
	return idx
}

// Reload re-reads the index from storage, picking up writes made by another
// process. The current entries are kept when the read fails.
func (i *Index) Reload() error {
	entries, err := i.read()
	if err != nil {
		i.log.Warn("history reload failed, keeping current index", zap.Error(err))
		return err
	}
	i.mu.Lock()
	i.entries = entries
	i.stale = false
	i.mu.Unlock()
	return nil
}

// read loads the stored index. A corrupt value reads as empty; a store
// failure is returned.
func (i *Index) read() ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	if _, err := storage.GetJSON(i.kv, storage.KeyHistoryIndex, &entries); err != nil {
		if !errs.IsKind(err, errs.KindStorageCorruption) {
			return nil, fmt.Errorf("read history: %w", err)
		}
		i.log.Warn("discarding unreadable history index", zap.Error(err))
		return nil, nil
	}

	// Older builds could leave duplicates; keep the newest per session.
	seen := make(map[string]bool, len(entries))
	model.SortHistory(entries)
	out := entries[:0]
	for _, e := range entries {
		if e.SessionID == "" || seen[e.SessionID] {
			continue
		}
		seen[e.SessionID] = true
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Entries returns the whole index in display order.
func (i *Index) Entries() []model.HistoryEntry {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]model.HistoryEntry(nil), i.entries...)
}

// Len returns the number of entries.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Get returns the entry for sessionID.
func (i *Index) Get(sessionID string) (model.HistoryEntry, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if n := i.find(sessionID); n >= 0 {
		return i.entries[n], true
	}
	return model.HistoryEntry{}, false
}

// Contains reports whether sessionID has an entry.
func (i *Index) Contains(sessionID string) bool {
	_, ok := i.Get(sessionID)
	return ok
}

// Search returns entries whose title contains query, ignoring case. An
// empty query matches everything.
func (i *Index) Search(query string) []model.HistoryEntry {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))

	i.mu.Lock()
	defer i.mu.Unlock()

	var out []model.HistoryEntry
	for _, e := range i.entries {
		if q == "" || strings.Contains(fold.String(e.Title), q) {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// MUTATIONS
// =============================================================================

// UpsertOnFirstUserMessage records activity for a session that just received
// a user message. A new session gets an unpinned entry. An existing entry is
// touched, and its title and preview are replaced only when the session log
// holds exactly one user message.
func (i *Index) UpsertOnFirstUserMessage(sessionID, title, preview string) error {
	first := i.logs != nil && i.logs.CountBySender(sessionID, model.SenderUser) == 1

	return i.mutate(func() error {
		now := i.stamp()
		n := i.find(sessionID)
		if n < 0 {
			i.entries = append(i.entries, model.HistoryEntry{
				SessionID:           sessionID,
				Title:               util.TruncateRunes(title, model.MaxTitleLength),
				FirstMessageContent: preview,
				Timestamp:           now,
			})
			return nil
		}
		e := &i.entries[n]
		e.Timestamp = now
		if first {
			e.Title = util.TruncateRunes(title, model.MaxTitleLength)
			e.FirstMessageContent = preview
		}
		return nil
	})
}

// Touch bumps the session's timestamp.
func (i *Index) Touch(sessionID string) error {
	return i.update(sessionID, func(e *model.HistoryEntry) {})
}

// Rename sets a new title, truncated to the maximum length.
func (i *Index) Rename(sessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	return i.update(sessionID, func(e *model.HistoryEntry) {
		e.Title = util.TruncateRunes(title, model.MaxTitleLength)
	})
}

// TogglePin flips the pinned flag and returns the new value.
func (i *Index) TogglePin(sessionID string) (bool, error) {
	var pinned bool
	err := i.update(sessionID, func(e *model.HistoryEntry) {
		e.IsPinned = !e.IsPinned
		pinned = e.IsPinned
	})
	return pinned, err
}

// Delete removes the entry and the session's message log. Deleting a
// session without an entry still removes its log.
func (i *Index) Delete(sessionID string) error {
	err := i.mutate(func() error {
		n := i.find(sessionID)
		if n < 0 {
			return errNoChange
		}
		i.entries = append(i.entries[:n], i.entries[n+1:]...)
		return nil
	})
	if err != nil && err != errNoChange {
		return err
	}
	if i.logs != nil {
		if err := i.logs.Delete(sessionID); err != nil {
			return fmt.Errorf("delete chat %s: %w", sessionID, err)
		}
	}
	return nil
}

var errNoChange = errors.New("no change")

func (i *Index) update(sessionID string, fn func(*model.HistoryEntry)) error {
	return i.mutate(func() error {
		n := i.find(sessionID)
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		fn(&i.entries[n])
		i.entries[n].Timestamp = i.stamp()
		return nil
	})
}

// mutate applies fn under the lock, re-sorts and persists. The in-memory
// index is kept even if persisting fails.
func (i *Index) mutate(fn func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stale {
		entries, err := i.read()
		if err != nil {
			return err
		}
		i.entries, i.stale = entries, false
	}
	if err := fn(); err != nil {
		return err
	}
	model.SortHistory(i.entries)
	return i.persist()
}

func (i *Index) persist() error {
	var err error
	if len(i.entries) == 0 {
		err = i.kv.Remove(storage.KeyHistoryIndex)
	} else {
		err = storage.SetJSON(i.kv, storage.KeyHistoryIndex, i.entries)
	}
	if err != nil {
		i.log.Error("failed to persist history index", zap.Error(err))
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func (i *Index) find(sessionID string) int {
	for n := range i.entries {
		if i.entries[n].SessionID == sessionID {
			return n
		}
	}
	return -1
}

// stamp returns now without the monotonic reading, so in-memory values
// compare the same way persisted ones do.
func (i *Index) stamp() time.Time {
	return i.now().Round(0)
}
