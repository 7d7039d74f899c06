// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key/value persistence layer for echoflow.
//
// Every piece of durable client state is an opaque text blob under a key:
// the history index, preferences, the last active session and one message
// log per session. Blobs that fail to decode are reported as corruption and
// treated by callers as absent.
//
// # Key Types
//
//   - Store: Get/Set/Remove/Close contract implemented by every driver
//   - MemoryStore: process-local map, used by tests and --ephemeral
//   - FileStore: one JSON file per key with atomic writes and an fsnotify watcher
//   - SQLiteStore: a single kv table in a pure-Go SQLite database
//
// # Usage
//
//	st, err := storage.Open("file", "~/.echoflow/data", storage.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	var prefs Preferences
//	if ok, err := storage.GetJSON(st, storage.KeyPreferences, &prefs); err != nil {
//	    log.Warn("preferences unreadable", zap.Error(err))
//	} else if !ok {
//	    prefs = DefaultPreferences()
//	}
package storage
