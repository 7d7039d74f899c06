// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/errs"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a durable string key/value table. Implementations are safe for
// concurrent use; writers from other processes are last-write-wins.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Close releases resources held by the store.
	Close() error
}

// =============================================================================
// KEYS
// =============================================================================

const (
	KeyHistoryIndex      = "history-index"
	KeyPreferences       = "preferences"
	KeyLastActiveSession = "last-active-session"

	messagesPrefix = "messages:"
)

// MessagesKey returns the key holding the message log of a session.
func MessagesKey(sessionID string) string {
	return messagesPrefix + sessionID
}

// SessionFromMessagesKey extracts the session id from a message-log key.
func SessionFromMessagesKey(key string) (string, bool) {
	if !strings.HasPrefix(key, messagesPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, messagesPrefix), true
}

// =============================================================================
// JSON HELPERS
// =============================================================================

// GetJSON decodes the value under key into v. It reports false when the key
// is absent. A value that does not decode yields a StorageCorruption error
// and false; callers treat that as absent.
func GetJSON(s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, errs.Corrupt("storage.get", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, string(data))
}

// =============================================================================
// DRIVER SELECTION
// =============================================================================

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned by Open for an unrecognised driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Option configures a store created by Open or a driver constructor.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	debounce time.Duration
}

// WithLogger sets the logger used for non-fatal storage events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDebounce sets how long FileStore.Watch waits for a key to settle
// before reporting it.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates a store for driver. For "file" path is a directory, for
// "sqlite" a database file; "memory" ignores path. A leading "~" expands to
// the user's home directory.
func Open(driver, path string, opts ...Option) (Store, error) {
	p, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		return NewFileStore(p, opts...)
	case DriverSQLite:
		return NewSQLiteStore(p, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	// Keys returns every key starting with prefix, sorted.
	Keys(prefix string) ([]string, error)
}

// SessionIDs returns the ids of every persisted message log in s, or nil
// when s cannot enumerate keys.
func SessionIDs(s Store) ([]string, error) {
	l, ok := s.(Lister)
	if !ok {
		return nil, nil
	}
	keys, err := l.Keys(messagesPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := SessionFromMessagesKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
