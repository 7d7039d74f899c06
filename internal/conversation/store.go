// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/model"
	"github.com/jeranaias/echoflow/internal/storage"
)

// ErrMessageNotFound is returned when a message id is not in the log.
var ErrMessageNotFound = errors.New("message not found")

// ChangeFunc observes a session's log after every mutation.
type ChangeFunc func(sessionID string, msgs []model.Message)

// Update lists the fields Replace may change. Nil fields are left as is.
type Update struct {
	Text      *string
	IsLoading *bool
}

// Store manages session message logs on top of a key/value store.
type Store struct {
	kv  storage.Store
	log *zap.Logger

	mu       sync.Mutex
	onChange ChangeFunc
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers fn to run after each mutation.
func WithObserver(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = fn }
}

// New creates a Store backed by kv.
func New(kv storage.Store, opts ...Option) *Store {
	s := &Store{kv: kv, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetObserver replaces the change observer.
func (s *Store) SetObserver(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// =============================================================================
// READS
// =============================================================================

// Load returns the log for sessionID, empty when absent or unreadable.
func (s *Store) Load(sessionID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneMessages(s.load(sessionID))
}

// CountBySender returns how many messages in the session were sent by sender.
func (s *Store) CountBySender(sessionID string, sender model.Sender) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CountBySender(s.load(sessionID), sender)
}

func (s *Store) load(sessionID string) []model.Message {
	msgs, err := s.read(sessionID)
	if err != nil {
		s.log.Warn("message log unreadable", zap.String("session", sessionID), zap.Error(err))
		return nil
	}
	return msgs
}

// read returns the stored log. A corrupt log reads as empty; a store
// failure is returned so callers never write over a log they could not see.
func (s *Store) read(sessionID string) ([]model.Message, error) {
	var msgs []model.Message
	ok, err := storage.GetJSON(s.kv, storage.MessagesKey(sessionID), &msgs)
	if err != nil {
		if !errs.IsKind(err, errs.KindStorageCorruption) {
			return nil, fmt.Errorf("read log %s: %w", sessionID, err)
		}
		s.log.Warn("discarding corrupt message log",
			zap.String("session", sessionID), zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return msgs, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append adds msg to the end of the session's log.
func (s *Store) Append(sessionID string, msg model.Message) error {
	return s.mutate(sessionID, func(msgs []model.Message) ([]model.Message, error) {
		return append(msgs, msg), nil
	})
}

// Replace applies u to the message with messageID.
func (s *Store) Replace(sessionID, messageID string, u Update) error {
	return s.mutate(sessionID, func(msgs []model.Message) ([]model.Message, error) {
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			if u.Text != nil {
				msgs[i].Text = *u.Text
			}
			if u.IsLoading != nil {
				msgs[i].IsLoading = *u.IsLoading
			}
			return msgs, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	})
}

// RemoveByID deletes the message with messageID. Removing an unknown id is
// a no-op.
func (s *Store) RemoveByID(sessionID, messageID string) error {
	return s.mutate(sessionID, func(msgs []model.Message) ([]model.Message, error) {
		out := msgs[:0]
		for _, m := range msgs {
			if m.ID != messageID {
				out = append(out, m)
			}
		}
		return out, nil
	})
}

// PruneLoading drops placeholders left behind by an interrupted process and
// returns how many were removed.
func (s *Store) PruneLoading(sessionID string) (int, error) {
	removed := 0
	err := s.mutate(sessionID, func(msgs []model.Message) ([]model.Message, error) {
		out := msgs[:0]
		for _, m := range msgs {
			if m.IsLoading {
				removed++
				continue
			}
			out = append(out, m)
		}
		if removed == 0 {
			return nil, errNoChange
		}
		return out, nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return removed, err
}

// Delete removes the session's persisted log.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	err := s.kv.Remove(storage.MessagesKey(sessionID))
	fn := s.onChange
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("delete log %s: %w", sessionID, err)
	}
	if fn != nil {
		fn(sessionID, []model.Message{})
	}
	return nil
}

var errNoChange = errors.New("no change")

// mutate performs a read-modify-write of one log under the lock and
// notifies the observer outside it.
func (s *Store) mutate(sessionID string, fn func([]model.Message) ([]model.Message, error)) error {
	s.mu.Lock()
	current, err := s.read(sessionID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	msgs, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	if err := storage.SetJSON(s.kv, storage.MessagesKey(sessionID), msgs); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist log %s: %w", sessionID, err)
	}
	snapshot := model.CloneMessages(msgs)
	obs := s.onChange
	s.mu.Unlock()

	if obs != nil {
		obs(sessionID, snapshot)
	}
	return nil
}
