// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/util"
)

const fileExt = ".json"

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one file per key under a directory. Writes are atomic
// (temp file, fsync, rename) so a crash never leaves a half-written blob.
type FileStore struct {
	dir  string
	opts options

	mu     sync.Mutex
	closed bool

	// own records keys this process wrote recently so Watch can skip them.
	ownMu sync.Mutex
	own   map[string]time.Time
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		opts: buildOptions(opts),
		own:  make(map[string]time.Time),
	}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.markOwn(key)
	if err := util.AtomicWriteFile(s.path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.markOwn(key)
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Keys implements Lister.
func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := s.keyFromPath(e.Name())
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// path maps a key to its file. Keys are query-escaped so "messages:<id>"
// stays a single portable file name.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+fileExt)
}

// keyFromPath reverses path. Temp files and foreign files report false.
func (s *FileStore) keyFromPath(p string) (string, bool) {
	name := filepath.Base(p)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *FileStore) markOwn(key string) {
	s.ownMu.Lock()
	s.own[key] = time.Now()
	s.ownMu.Unlock()
}

// isOwn reports whether key was written by this process within the settle
// window, and forgets stale entries.
func (s *FileStore) isOwn(key string, now time.Time) bool {
	s.ownMu.Lock()
	defer s.ownMu.Unlock()
	at, ok := s.own[key]
	if !ok {
		return false
	}
	if now.Sub(at) > 4*s.opts.debounce {
		delete(s.own, key)
		return false
	}
	return true
}

// =============================================================================
// WATCHER
// =============================================================================

// Watch reports keys changed by other processes until ctx is cancelled.
// Bursts of events for one key are coalesced: fn runs once the key has been
// quiet for the debounce interval. Watch blocks; run it in its own goroutine.
func (s *FileStore) Watch(ctx context.Context, fn func(key string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	log := s.opts.logger.With(zap.String("dir", s.dir))
	pending := make(map[string]time.Time)

	tick := s.opts.debounce / 2
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key, ok := s.keyFromPath(event.Name)
			if !ok {
				continue
			}
			pending[key] = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("store watcher error", zap.Error(err))

		case now := <-ticker.C:
			for key, changed := range pending {
				if now.Sub(changed) < s.opts.debounce {
					continue
				}
				delete(pending, key)
				if s.isOwn(key, now) {
					continue
				}
				log.Debug("external store change", zap.String("key", key))
				fn(key)
			}
		}
	}
}
